package telegram

import (
	"fmt"

	"github.com/go-telegram/bot/models"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/domain"
)

// CallbackBuyPrefix prefixes the callback data of plan buttons: buy_<planID>.
const CallbackBuyPrefix = "buy_"

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// URLButton creates a URL inline keyboard button.
func URLButton(text, url string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text: text,
		URL:  url,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// ButtonRow creates a row of inline buttons.
func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// PlansKeyboard lists one buy button per plan.
func PlansKeyboard(plans []domain.Plan) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(plans))
	for _, p := range plans {
		label := fmt.Sprintf("%s - %s %s", p.Name, p.Price.StringFixed(2), config.Currency)
		rows = append(rows, ButtonRow(InlineButton(label, fmt.Sprintf("%s%d", CallbackBuyPrefix, p.ID))))
	}
	return InlineKeyboard(rows...)
}

package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-telegram/bot"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/service"
)

var _ service.AccessControl = (*ChannelAccess)(nil)

// ChannelAccess controls membership of the gated channel. The bot must be an admin
// there with the invite and ban rights.
type ChannelAccess struct {
	bot       *bot.Bot
	channelID int64
	now       func() time.Time
}

func NewChannelAccess(b *bot.Bot, channelID int64) *ChannelAccess {
	return &ChannelAccess{bot: b, channelID: channelID, now: time.Now}
}

// GrantOneTimeAccess creates an invite link that admits exactly one member.
func (a *ChannelAccess) GrantOneTimeAccess(ctx context.Context, subscriberID int64) (string, error) {
	link, err := a.bot.CreateChatInviteLink(ctx, &bot.CreateChatInviteLinkParams{
		ChatID:      a.channelID,
		Name:        fmt.Sprintf("sub %d", subscriberID),
		ExpireDate:  int(a.now().Add(config.InviteLinkTTL).Unix()),
		MemberLimit: 1,
	})
	if err != nil {
		return "", errors.Wrap(err, "create invite link")
	}
	return link.InviteLink, nil
}

// RevokeAccess kicks the subscriber: ban followed by unban, so they can rejoin with a
// new invite after paying again.
func (a *ChannelAccess) RevokeAccess(ctx context.Context, subscriberID int64) error {
	if _, err := a.bot.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID: a.channelID,
		UserID: subscriberID,
	}); err != nil {
		return errors.Wrap(err, "ban member")
	}

	if _, err := a.bot.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       a.channelID,
		UserID:       subscriberID,
		OnlyIfBanned: true,
	}); err != nil {
		return errors.Wrap(err, "unban member")
	}
	return nil
}

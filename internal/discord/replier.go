package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/rickbot/pkg/cmd"
	"github.com/keshon/rickbot/pkg/retrylimit"
)

// messageAPI is the slice of *discordgo.Session the replier needs.
type messageAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// replier answers in the originating channel, quoting the triggering message.
type replier struct {
	api       messageAPI
	limiter   *retrylimit.AdaptiveLimiter
	channelID string
	reference *discordgo.MessageReference
}

func (r *replier) Reply(ctx context.Context, reply cmd.Reply) error {
	msg := &discordgo.MessageSend{
		Content:         reply.Content,
		Reference:       r.reference,
		AllowedMentions: &discordgo.MessageAllowedMentions{RepliedUser: true},
	}
	if reply.Embed != nil {
		msg.Embeds = []*discordgo.MessageEmbed{toMessageEmbed(reply.Embed)}
	}
	return retrylimit.Do(ctx, r.limiter, func() error {
		_, err := r.api.ChannelMessageSendComplex(r.channelID, msg, discordgo.WithContext(ctx))
		return withStatus(err)
	})
}

func (r *replier) Typing(ctx context.Context) error {
	return retrylimit.Do(ctx, r.limiter, func() error {
		return withStatus(r.api.ChannelTyping(r.channelID, discordgo.WithContext(ctx)))
	})
}

func toMessageEmbed(e *cmd.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return embed
}

// withStatus exposes the HTTP status of REST failures to the limiter.
func withStatus(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return &retrylimit.StatusError{Code: rest.Response.StatusCode, Err: err}
	}
	return err
}

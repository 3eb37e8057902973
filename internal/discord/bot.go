// Package discord connects the dispatcher to a Discord gateway session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/rickbot/internal/dispatch"
	"github.com/keshon/rickbot/pkg/retrylimit"
)

// Dispatcher is the pipeline every inbound message is handed to.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev dispatch.Event) dispatch.Outcome
}

// Options tune the outbound side of the bot.
type Options struct {
	// OpenAttempts bounds gateway connection retries.
	OpenAttempts int
	// Limiter throttles replies and typing indicators. Defaults to 5 rps adapting within [1, 20].
	Limiter *retrylimit.AdaptiveLimiter
	Log     *zap.Logger
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	dispatch Dispatcher
	limiter  *retrylimit.AdaptiveLimiter
	log      *zap.Logger
	attempts int

	// mu orders inflight.Add against the drain in Run.
	mu       sync.Mutex
	stopping bool
	ctx      context.Context
	inflight sync.WaitGroup
}

// New creates a session for token. Nothing is opened until Run.
func New(token string, d Dispatcher, opts Options) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Limiter == nil {
		opts.Limiter = retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
	}
	if opts.OpenAttempts <= 0 {
		opts.OpenAttempts = 5
	}
	return &Bot{
		dg:       dg,
		dispatch: d,
		limiter:  opts.Limiter,
		log:      opts.Log,
		attempts: opts.OpenAttempts,
		ctx:      context.Background(),
	}, nil
}

// Run opens the gateway, serves messages until ctx is done, then waits for
// in-flight dispatches and closes the session. Messages arriving after ctx
// is done are dropped; dispatches already running keep a live context so
// their replies still go out.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = context.WithoutCancel(ctx)
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onMessageCreate)

	err := retrylimit.WithRetryMax(ctx, func() error {
		err := b.dg.Open()
		if isAuthFailure(err) {
			return retrylimit.Fatal(err)
		}
		return err
	}, nil, b.attempts)
	if err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	<-ctx.Done()
	b.log.Info("shutdown signal received, waiting for in-flight commands")
	b.drain()
	return b.dg.Close()
}

// acquire registers one in-flight dispatch unless shutdown has begun.
func (b *Bot) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopping || b.ctx.Err() != nil {
		return false
	}
	b.inflight.Add(1)
	return true
}

// drain stops new dispatches and waits for the running ones.
func (b *Bot) drain() {
	b.mu.Lock()
	b.stopping = true
	b.mu.Unlock()
	b.inflight.Wait()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("discord bot is running",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

// onMessageCreate runs on its own goroutine per event (discordgo default).
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	if !b.acquire() {
		b.log.Debug("dropping message during shutdown", zap.String("channel", m.ChannelID))
		return
	}
	defer b.inflight.Done()

	ev := eventFromMessage(m.Message)
	if m.GuildID != "" {
		ev.Membership = membershipFor(sessionDirectory{s: s}, m.Message)
	}
	ev.Replier = &replier{
		api:       s,
		limiter:   b.limiter,
		channelID: m.ChannelID,
		reference: m.Reference(),
	}
	b.dispatch.Dispatch(b.ctx, ev)
}

// eventFromMessage maps the transport-independent parts of a message.
func eventFromMessage(m *discordgo.Message) dispatch.Event {
	return dispatch.Event{
		ActorID:   m.Author.ID,
		ActorName: m.Author.Username,
		Bot:       m.Author.Bot,
		ServerID:  m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
}

func isAuthFailure(err error) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil &&
		rest.Response.StatusCode == http.StatusUnauthorized
}

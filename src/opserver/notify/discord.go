package notify

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/redquill/redquill/src/opserver/engine"
)

// DiscordNotifier announces operation lifecycle events to an operator
// channel. Optional: when no token/channel is configured the engine runs
// without it.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("notify: discord open: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID}, nil
}

func (n *DiscordNotifier) Notify(ev engine.Event) {
	var msg string
	switch ev.Kind {
	case engine.EventOperationStarted:
		msg = fmt.Sprintf("Operation **%s** started (%s)", ev.Operation, ev.Detail)
	case engine.EventOperationFinished:
		msg = fmt.Sprintf("Operation **%s** finished", ev.Operation)
	case engine.EventOperationCancelled:
		msg = fmt.Sprintf("Operation **%s** cancelled", ev.Operation)
	case engine.EventOperationError:
		msg = fmt.Sprintf("Operation **%s** hit a fatal error: %s", ev.Operation, ev.Detail)
	case engine.EventAgentDead:
		msg = fmt.Sprintf("Operation **%s**: %s went dead, links discarded", ev.Operation, ev.Detail)
	default:
		return
	}
	if _, err := n.session.ChannelMessageSend(n.channelID, msg); err != nil {
		log.Printf("notify: discord send: %v", err)
	}
}

// Close shuts the Discord session down.
func (n *DiscordNotifier) Close() {
	if err := n.session.Close(); err != nil {
		log.Printf("notify: discord close: %v", err)
	}
}

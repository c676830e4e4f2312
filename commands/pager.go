package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	pagerPrefix = "pager:"
	pagerTTL    = 5 * time.Minute
)

type pagerState struct {
	authorID string
	pages    []*discordgo.MessageEmbed
	page     int
	expires  time.Time
}

// Pager keeps the page state of embeds sent with navigation buttons, keyed by
// the id of the sent message.
type Pager struct {
	mu     sync.Mutex
	states map[string]*pagerState
	now    func() time.Time
}

func NewPager() *Pager {
	return &Pager{states: make(map[string]*pagerState), now: time.Now}
}

// Paginate splits entries into embeds of perPage fields built by page.
func Paginate[T any](entries []T, perPage int, page func(chunk []T, index, total int) *discordgo.MessageEmbed) []*discordgo.MessageEmbed {
	total := (len(entries) + perPage - 1) / perPage
	pages := make([]*discordgo.MessageEmbed, 0, total)
	for i := 0; i < total; i++ {
		end := min((i+1)*perPage, len(entries))
		pages = append(pages, page(entries[i*perPage:end], i, total))
	}
	return pages
}

// Send sends the first page, with navigation buttons when there is more than one.
func (p *Pager) Send(ctx context.Context, c *Context, pages []*discordgo.MessageEmbed) (*discordgo.Message, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{pages[0]}}
	if len(pages) > 1 {
		data.Components = pagerButtons(0, len(pages))
	}
	msg, err := c.Send(ctx, data)
	if err != nil || len(pages) == 1 {
		return msg, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for id, st := range p.states {
		if !now.Before(st.expires) {
			delete(p.states, id)
		}
	}
	p.states[msg.ID] = &pagerState{authorID: c.Author.ID, pages: pages, expires: now.Add(pagerTTL)}
	return msg, nil
}

// Handle answers a pager button press. It reports false for interactions it
// does not own.
func (p *Pager) Handle(ctx context.Context, s Session, i *discordgo.Interaction) (bool, error) {
	if i.Type != discordgo.InteractionMessageComponent || i.Message == nil {
		return false, nil
	}
	action, ok := strings.CutPrefix(i.MessageComponentData().CustomID, pagerPrefix)
	if !ok {
		return false, nil
	}

	userID := ""
	switch {
	case i.Member != nil && i.Member.User != nil:
		userID = i.Member.User.ID
	case i.User != nil:
		userID = i.User.ID
	}

	p.mu.Lock()
	st, ok := p.states[i.Message.ID]
	if ok && !p.now().Before(st.expires) {
		delete(p.states, i.Message.ID)
		ok = false
	}
	if !ok {
		p.mu.Unlock()
		return true, s.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{Components: []discordgo.MessageComponent{}},
		}, discordgo.WithContext(ctx))
	}
	if st.authorID != userID {
		p.mu.Unlock()
		return true, s.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "This menu is not for you.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}, discordgo.WithContext(ctx))
	}

	components := []discordgo.MessageComponent{}
	switch action {
	case "first":
		st.page = 0
	case "prev":
		st.page = max(st.page-1, 0)
	case "next":
		st.page = min(st.page+1, len(st.pages)-1)
	case "last":
		st.page = len(st.pages) - 1
	case "stop":
		delete(p.states, i.Message.ID)
	}
	if action != "stop" {
		st.expires = p.now().Add(pagerTTL)
		components = pagerButtons(st.page, len(st.pages))
	}
	embed := st.pages[st.page]
	p.mu.Unlock()

	return true, s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	}, discordgo.WithContext(ctx))
}

func pagerButtons(page, total int) []discordgo.MessageComponent {
	button := func(id, label string, disabled bool) discordgo.MessageComponent {
		return discordgo.Button{CustomID: pagerPrefix + id, Label: label, Style: discordgo.SecondaryButton, Disabled: disabled}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("first", "≪", page == 0),
			button("prev", "Back", page == 0),
			discordgo.Button{CustomID: pagerPrefix + "count", Label: fmt.Sprintf("%d/%d", page+1, total), Style: discordgo.PrimaryButton, Disabled: true},
			button("next", "Next", page == total-1),
			button("last", "≫", page == total-1),
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: pagerPrefix + "stop", Label: "Stop", Style: discordgo.DangerButton},
		}},
	}
}

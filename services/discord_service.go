package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"xandpulse/models"
)

var errDiscordDisabled = errors.New("discord bot not enabled")

const (
	colorRed    = 15158332
	colorGold   = 15844367
	colorPurple = 10181046
	colorOrange = 15105570
	colorBlue   = 3447003
	colorGreen  = 3066993

	maxDigestLines = 15
)

// DiscordBotService posts operator-facing digests to a single channel.
type DiscordBotService struct {
	session   *discordgo.Session
	channelID string
	botID     string
	enabled   bool

	// statusFn answers the "!pulse status" command; optional.
	statusFn func() string
}

func NewDiscordBotService(token string, channelID string) (*DiscordBotService, error) {
	if token == "" {
		log.Println("Discord bot token not provided, Discord notifications disabled")
		return &DiscordBotService{enabled: false}, nil
	}

	if channelID == "" {
		log.Println("Discord channel ID not provided, Discord notifications disabled")
		return &DiscordBotService{enabled: false}, nil
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	user, err := session.User("@me")
	if err != nil {
		return nil, fmt.Errorf("failed to get bot user: %w", err)
	}

	bot := &DiscordBotService{
		session:   session,
		channelID: channelID,
		botID:     user.ID,
		enabled:   true,
	}
	session.AddHandler(bot.messageHandler)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord connection: %w", err)
	}

	log.Printf("✓ Discord bot connected (bot %s, channel %s)", user.ID, channelID)
	return bot, nil
}

// Enabled reports whether messages will actually be posted.
func (d *DiscordBotService) Enabled() bool {
	return d != nil && d.enabled
}

// SetStatusProvider wires the text returned by the status command.
func (d *DiscordBotService) SetStatusProvider(fn func() string) {
	if d != nil {
		d.statusFn = fn
	}
}

func (d *DiscordBotService) Close() {
	if d.Enabled() && d.session != nil {
		log.Println("Closing Discord bot connection...")
		d.session.Close()
	}
}

func (d *DiscordBotService) messageHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == d.botID || m.ChannelID != d.channelID {
		return
	}
	if reply := d.commandReply(m.Content); reply != "" {
		s.ChannelMessageSend(m.ChannelID, reply)
	}
}

func (d *DiscordBotService) commandReply(content string) string {
	if !strings.HasPrefix(content, "!pulse") {
		return ""
	}
	args := strings.Fields(content)
	if len(args) < 2 {
		return ""
	}

	switch args[1] {
	case "ping":
		return "Pong! XandPulse bot is online."
	case "help":
		return "**XandPulse Bot Commands:**\n" +
			"`!pulse ping` - Check if bot is online\n" +
			"`!pulse help` - Show this help message\n" +
			"`!pulse status` - Current network summary"
	case "status":
		if d.statusFn == nil {
			return "Network status is not available yet."
		}
		return d.statusFn()
	default:
		return fmt.Sprintf("Unknown command: `%s`. Try `!pulse help`", args[1])
	}
}

// SendActivityDigest posts one embed summarising a cycle's activity events.
func (d *DiscordBotService) SendActivityDigest(events []models.ActivityEvent, snap *models.NetworkSnapshot) error {
	if !d.Enabled() {
		return errDiscordDisabled
	}
	if len(events) == 0 {
		return nil
	}

	embed := buildActivityEmbed(events, snap)
	if _, err := d.session.ChannelMessageSendEmbed(d.channelID, embed); err != nil {
		return fmt.Errorf("failed to send Discord message: %w", err)
	}
	return nil
}

// SendAlertSummary posts the outcome of an alert processing run.
func (d *DiscordBotService) SendAlertSummary(result models.ProcessResult) error {
	if !d.Enabled() {
		return errDiscordDisabled
	}

	embed := buildAlertSummaryEmbed(result)
	if _, err := d.session.ChannelMessageSendEmbed(d.channelID, embed); err != nil {
		return fmt.Errorf("failed to send Discord message: %w", err)
	}
	return nil
}

func (d *DiscordBotService) SendMessage(message string) error {
	if !d.Enabled() {
		return errDiscordDisabled
	}
	if _, err := d.session.ChannelMessageSend(d.channelID, message); err != nil {
		return fmt.Errorf("failed to send Discord message: %w", err)
	}
	return nil
}

func buildActivityEmbed(events []models.ActivityEvent, snap *models.NetworkSnapshot) *discordgo.MessageEmbed {
	counts := make(map[models.ActivityType]int)
	for _, ev := range events {
		counts[ev.Type]++
	}

	lines := make([]string, 0, maxDigestLines+1)
	for i, ev := range events {
		if i == maxDigestLines {
			lines = append(lines, fmt.Sprintf("…and %d more", len(events)-maxDigestLines))
			break
		}
		lines = append(lines, "• "+ev.Message)
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)

	fields := make([]*discordgo.MessageEmbedField, 0, len(types)+2)
	for _, t := range types {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   formatActivityType(models.ActivityType(t)),
			Value:  fmt.Sprintf("%d", counts[models.ActivityType(t)]),
			Inline: true,
		})
	}
	if snap != nil {
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Nodes Online", Value: fmt.Sprintf("%d / %d", snap.OnlineNodes, snap.TotalNodes), Inline: true},
			&discordgo.MessageEmbedField{Name: "Network Health", Value: fmt.Sprintf("%.1f%%", snap.HealthScore), Inline: true},
		)
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Network activity (%d events)", len(events)),
		Description: strings.Join(lines, "\n"),
		Color:       activityColor(counts),
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "XandPulse"},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

// activityColor picks the most severe colour present in the digest.
func activityColor(counts map[models.ActivityType]int) int {
	switch {
	case counts[models.ActivityNodeOffline] > 0:
		return colorRed
	case counts[models.ActivityNodeDegraded] > 0:
		return colorOrange
	case counts[models.ActivityStorageMilestone] > 0 || counts[models.ActivityBadgeAchieved] > 0:
		return colorGold
	case counts[models.ActivityVersionChange] > 0:
		return colorPurple
	default:
		return colorBlue
	}
}

func buildAlertSummaryEmbed(r models.ProcessResult) *discordgo.MessageEmbed {
	color := colorGreen
	if r.Errors > 0 {
		color = colorOrange
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Offline", Value: fmt.Sprintf("%d", r.OfflineAlerts), Inline: true},
		{Name: "Score Drop", Value: fmt.Sprintf("%d", r.ScoreDropAlerts), Inline: true},
		{Name: "Other", Value: fmt.Sprintf("%d", r.OtherAlerts), Inline: true},
		{Name: "Errors", Value: fmt.Sprintf("%d", r.Errors), Inline: true},
	}
	if n := len(r.ExpiredPushEndpoints); n > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Expired Push Endpoints",
			Value: fmt.Sprintf("%d", n),
		})
	}

	return &discordgo.MessageEmbed{
		Title:     "Alert cycle complete",
		Color:     color,
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: "XandPulse"},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func formatActivityType(t models.ActivityType) string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

package reporter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/mudlet/bugbot/internal/types"
)

// ErrLinkedMessageNotFound is returned when a linked message is not in the conversation
var ErrLinkedMessageNotFound = errors.New("linked message not found in conversation")

var messageLinkRegex = regexp.MustCompile(`^https://(?:ptb\.|canary\.)?discord(?:app)?\.com/channels/(\d+)/(\d+)/(\d+)`)

// ParseMessageLink extracts the guild, channel and message IDs from a Discord message link
func ParseMessageLink(link string) (guildID, channelID, messageID uint64, ok bool) {
	m := messageLinkRegex.FindStringSubmatch(link)
	if m == nil {
		return 0, 0, 0, false
	}
	ids := make([]uint64, 3)
	for i := range ids {
		id, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return 0, 0, 0, false
		}
		ids[i] = id
	}
	return ids[0], ids[1], ids[2], true
}

// MessageLink builds a link to a Discord message
func MessageLink(guildID, channelID, messageID uint64) string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", guildID, channelID, messageID)
}

// LinkedWindow returns the linked message and up to count-1 messages after it.
// count is clamped like Request.MessageCount. When no message in the
// conversation carries an ID, ok is false and the caller keeps its own window.
func LinkedWindow(messages []types.Message, messageID uint64, count int) (window []types.Message, ok bool, err error) {
	id := strconv.FormatUint(messageID, 10)
	hasIDs := false
	for i, m := range messages {
		if m.ID == "" {
			continue
		}
		hasIDs = true
		if m.ID == id {
			end := min(len(messages), i+ClampMessageCount(count))
			return messages[i:end], true, nil
		}
	}
	if !hasIDs {
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("%w: %s", ErrLinkedMessageNotFound, id)
}

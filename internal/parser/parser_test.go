package parser

import (
	"strings"
	"testing"
	"time"

	"example.com/jodi/services/whatsapp/internal/models"
	"github.com/stretchr/testify/require"
)

func TestParseJoinedSpanish(t *testing.T) {
	res, err := Parse(strings.NewReader("12/3/2024, 18:45 - +52 55 1234 5678 se unió con el enlace del grupo"), "Vecinos")
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	ev := res.Events[0]
	require.Equal(t, models.EventJoined, ev.EventType)
	require.Equal(t, "525512345678", ev.UserIdentifier)
	require.Equal(t, "Vecinos", ev.GroupName)
	require.Equal(t, time.Date(2024, 3, 12, 18, 45, 0, 0, time.UTC), ev.Timestamp)
}

func TestParseJoinedEnglish(t *testing.T) {
	res, err := Parse(strings.NewReader("1/1/24, 10:00 - Juan joined using this group's invite link"), "Neighbors")
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	ev := res.Events[0]
	require.Equal(t, models.EventJoined, ev.EventType)
	require.Equal(t, "Juan", ev.UserIdentifier)
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), ev.Timestamp)
}

func TestParseLeft(t *testing.T) {
	input := "1/1/24, 10:00 - +52 55 1234 5678 salió del grupo\n" +
		"2/1/24, 11:30 - Maria left\n"

	res, err := Parse(strings.NewReader(input), "Vecinos")
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	require.Equal(t, models.EventLeft, res.Events[0].EventType)
	require.Equal(t, "525512345678", res.Events[0].UserIdentifier)
	require.Equal(t, models.EventLeft, res.Events[1].EventType)
	require.Equal(t, "Maria", res.Events[1].UserIdentifier)
}

func TestParseAddedByAdmin(t *testing.T) {
	res, err := Parse(strings.NewReader("5/6/2023, 9:15 - Se añadió a +34 600 111 222."), "Vecinos")
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	require.Equal(t, models.EventAdded, res.Events[0].EventType)
	require.Equal(t, "34600111222", res.Events[0].UserIdentifier)
}

func TestParseAddedByMemberMultipleTargets(t *testing.T) {
	res, err := Parse(strings.NewReader("5/6/2023, 9:15 - +52 55 0000 0000 añadió a +34 600 111 222 y +34 600 333 444"), "Vecinos")
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	require.Equal(t, "34600111222", res.Events[0].UserIdentifier)
	require.Equal(t, "34600333444", res.Events[1].UserIdentifier)
	for _, ev := range res.Events {
		require.Equal(t, models.EventAdded, ev.EventType)
	}
}

func TestParseNicknameWithTilde(t *testing.T) {
	res, err := Parse(strings.NewReader("1/2/2024, 8:00 - ~ Currio salió del grupo"), "Vecinos")
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	require.Equal(t, "~Currio", res.Events[0].UserIdentifier)
}

func TestParseSkipsChatMessages(t *testing.T) {
	input := "1/1/24, 10:00 - Juan: I left\n" +
		"1/1/24, 10:01 - Maria: se unió con el enlace del grupo jaja\n" +
		"1/1/24, 10:02 - Los mensajes y las llamadas están cifrados de extremo a extremo.\n"

	res, err := Parse(strings.NewReader(input), "Vecinos")
	require.NoError(t, err)
	require.Empty(t, res.Events)
	require.Zero(t, res.SkippedTimestamps)
}

func TestParseCountsBadTimestamps(t *testing.T) {
	input := "31/13/2024, 10:00 - Juan left\n" +
		"1/1/24, 10:00 - Juan left\n"

	res, err := Parse(strings.NewReader(input), "Vecinos")
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	require.Equal(t, 1, res.SkippedTimestamps)
}

func TestParseFirstMatchWins(t *testing.T) {
	// A phone-number subject satisfies both the Spanish and the English
	// left patterns; the Spanish rule is listed first and must classify it.
	res, err := Parse(strings.NewReader("1/1/24, 10:00 - +52 55 1234 5678 salió del grupo"), "Vecinos")
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	require.Equal(t, models.EventLeft, res.Events[0].EventType)
}

func TestSplitAddedUsers(t *testing.T) {
	users := SplitAddedUsers("+34 600 111 222, ~ Currio y Pedro.")
	require.Equal(t, []string{"+34 600 111 222", "~ Currio", "Pedro"}, users)
}

func TestGroupNameFromPath(t *testing.T) {
	require.Equal(t, "Vecinos", GroupNameFromPath("/exports/Chat de WhatsApp con Vecinos.txt"))
	require.Equal(t, "Neighbors", GroupNameFromPath("WhatsApp Chat with Neighbors.txt"))
	require.Equal(t, "plain", GroupNameFromPath("plain.txt"))
}

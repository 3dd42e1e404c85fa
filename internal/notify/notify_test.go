package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/milestone"
)

func sample() []milestone.Milestone {
	return []milestone.Milestone{{
		ID:          "m-1",
		Type:        milestone.TypeAffinity,
		CompanionID: "luna.v2",
		UserID:      "u1",
		Threshold:   25,
		OldValue:    24,
		NewValue:    26,
		At:          time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}}
}

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestNATS_PublishesToCompanionSubject(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sink := NewNATS(nc, "")
	assert.Equal(t, "companion.milestones.luna_v2", sink.Subject("luna.v2"))

	sub, err := nc.SubscribeSync("companion.milestones.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	require.NoError(t, sink.Notify(context.Background(), sample()))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "companion.milestones.luna_v2", msg.Subject)

	var got milestone.Milestone
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, int64(25), got.Threshold)
}

func TestNATS_FlushHonoursCallerDeadline(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sink := NewNATS(nc, "companion.events.")
	sub, err := nc.SubscribeSync("companion.events.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sink.Notify(ctx, sample()))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "companion.events.luna_v2", msg.Subject)

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	assert.Error(t, sink.Notify(cancelled, sample()))
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "_", subjectToken(""))
	assert.Equal(t, "a_b_c_", subjectToken("a.b*c>"))
	assert.Equal(t, "plain-id", subjectToken("plain-id"))
}

func TestLog_WritesEachMilestone(t *testing.T) {
	tl := logging.NewTestLogger()
	require.NoError(t, NewLog(tl.Logger).Notify(context.Background(), sample()))

	tl.AssertLogged(t, zapcore.InfoLevel, "milestone reached")
	tl.AssertField(t, "milestone reached", "milestone.type", "affinity_milestone")
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, BootstrapJoinsInitiated)
	assert.NotNil(t, BootstrapJoinsCompleted)
	assert.NotNil(t, BootstrapJoinsFailed)
	assert.NotNil(t, BootstrapJoinDuration)

	assert.NotNil(t, AsksCreated)
	assert.NotNil(t, AsksPending)
	assert.NotNil(t, AsksTimedOut)
	assert.NotNil(t, AskWaitDuration)

	assert.NotNil(t, CryptoOperations)
	assert.NotNil(t, MessagesProcessed)
	assert.NotNil(t, QueueDepth)
}

func TestMetricsIncrement(t *testing.T) {
	BootstrapJoinsInitiated.WithLabelValues("joiner").Inc()
	BootstrapJoinsCompleted.WithLabelValues("success").Inc()
	BootstrapJoinsFailed.WithLabelValues("expired_invite").Inc()
	BootstrapJoinDuration.WithLabelValues("redeem_invite").Observe(0.05)

	AsksCreated.WithLabelValues("registered").Inc()
	AsksPending.Inc()
	AsksTimedOut.Inc()
	AskWaitDuration.Observe(1.5)

	CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	CryptoOperations.WithLabelValues("mac", "hmac-sha256").Inc()

	assert.NotZero(t, testutil.CollectAndCount(BootstrapJoinsInitiated))
	assert.NotZero(t, testutil.CollectAndCount(AsksCreated))
	assert.NotZero(t, testutil.CollectAndCount(CryptoOperations))
}

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector()

	c.RecordMessage(true, false, 2*1000*1000) // 2ms
	c.RecordMessage(false, true, 1000*1000)
	c.RecordAskCreated()
	c.RecordAskOutcome(false, 10*1000*1000)
	c.RecordJoin(true)
	c.RecordJoin(false)

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap.MessagesAccepted)
	assert.Equal(t, int64(1), snap.MessagesRejected)
	assert.Equal(t, int64(1), snap.ReplaysDetected)
	assert.Equal(t, int64(1), snap.AsksCreated)
	assert.Equal(t, int64(1), snap.AsksResolved)
	assert.Equal(t, int64(1), snap.JoinsCompleted)
	assert.Equal(t, int64(1), snap.JoinsFailed)
	assert.InDelta(t, 0.5, snap.MessageAcceptRate(), 0.001)
}

func TestGlobalCollector(t *testing.T) {
	assert.NotNil(t, Global())
	assert.Same(t, Global(), Global())
}

package apply

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

type fakeBatchClient struct {
	calls      [][]string
	removes    [][]string
	failChunks map[int]bool
}

func (f *fakeBatchClient) ListMessageIDs(ctx context.Context, q, pt string) ([]string, string, error) {
	return nil, "", nil
}
func (f *fakeBatchClient) GetMessageMetadata(ctx context.Context, id string, h []string) (*gmail.Message, error) {
	return nil, nil
}
func (f *fakeBatchClient) ListLabels(ctx context.Context) ([]*gmail.Label, error) { return nil, nil }
func (f *fakeBatchClient) CreateLabel(ctx context.Context, n string) (*gmail.Label, error) {
	return nil, nil
}
func (f *fakeBatchClient) ListFilters(ctx context.Context) ([]*gmail.Filter, error) { return nil, nil }
func (f *fakeBatchClient) CreateFilter(ctx context.Context, fl *gmail.Filter) (*gmail.Filter, error) {
	return nil, nil
}
func (f *fakeBatchClient) DeleteFilter(ctx context.Context, id string) error { return nil }
func (f *fakeBatchClient) BatchModify(ctx context.Context, ids []string, add, remove []string) error {
	idx := len(f.calls)
	f.calls = append(f.calls, ids)
	f.removes = append(f.removes, remove)
	if f.failChunks[idx] {
		return assertErr{}
	}
	return nil
}

type assertErr struct{}

func (assertErr) Error() string { return "batch failed" }

func makeIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "m"
	}
	return out
}

func TestApply_ChunksAtMaxBatchSize(t *testing.T) {
	client := &fakeBatchClient{}
	a := &Applier{Client: client}

	job := Job{ClusterKey: "k1", MessageIDs: makeIDs(2500), LabelID: "L1"}
	outcomes := a.Apply(context.Background(), []Job{job})

	require.Len(t, outcomes, 1)
	assert.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0], 1000)
	assert.Len(t, client.calls[1], 1000)
	assert.Len(t, client.calls[2], 500)
}

func TestApply_FailedChunkRecordedNotRetried(t *testing.T) {
	client := &fakeBatchClient{failChunks: map[int]bool{0: true}}
	a := &Applier{Client: client}

	job := Job{ClusterKey: "k1", MessageIDs: makeIDs(1500), LabelID: "L1"}
	outcomes := a.Apply(context.Background(), []Job{job})

	require.Len(t, outcomes, 1)
	assert.Len(t, outcomes[0].FailedIDs, 1000)
	assert.Len(t, outcomes[0].SucceededIDs, 500)
}

func TestApply_ArchiveRemovesInboxLabel(t *testing.T) {
	client := &fakeBatchClient{}
	a := &Applier{Client: client}

	job := Job{ClusterKey: "k1", MessageIDs: []string{"m1"}, LabelID: "L1", Archive: true}
	a.Apply(context.Background(), []Job{job})

	require.Len(t, client.removes, 1)
	assert.Equal(t, []string{"INBOX"}, client.removes[0])
}

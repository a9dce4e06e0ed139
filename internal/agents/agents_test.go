// Path: internal/agents/agents_test.go
package agents

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/resiliency"
	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/vault"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testExecutor(t *testing.T, agent string, keys ...string) *resiliency.Executor {
	t.Helper()
	if len(keys) == 0 {
		keys = []string{"key-one", "key-two"}
	}
	ring, err := resiliency.NewKeyRing(agent, keys)
	require.NoError(t, err)
	return resiliency.NewExecutor(ring, agent, testLogger())
}

// fakeVault is an in-memory Vault for agent cycle tests.
type fakeVault struct {
	objects map[string][]byte
	fail    bool
}

func newFakeVault() *fakeVault {
	return &fakeVault{objects: make(map[string][]byte)}
}

func (v *fakeVault) AppendMetrics(_ context.Context, rows []vault.MetricRow, date string) error {
	if v.fail {
		return errContext("vault down")
	}
	data, _ := json.Marshal(rows)
	v.objects[vault.MetricsPath(date)] = append(v.objects[vault.MetricsPath(date)], data...)
	return nil
}

func (v *fakeVault) StoreJSON(_ context.Context, path string, data any) error {
	if v.fail {
		return errContext("vault down")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	v.objects[path] = payload
	return nil
}

func (v *fakeVault) FetchJSON(_ context.Context, path string, out any) error {
	data, ok := v.objects[path]
	if !ok {
		return vault.ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (v *fakeVault) List(_ context.Context, prefix string) ([]string, error) {
	var paths []string
	for p := range v.objects {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (v *fakeVault) StoreBinary(_ context.Context, path string, data []byte, _ string) (string, error) {
	if v.fail {
		return "", errContext("vault down")
	}
	v.objects[path] = data
	return "fake://" + path, nil
}

func (v *fakeVault) FetchBinary(_ context.Context, path string) ([]byte, error) {
	data, ok := v.objects[path]
	if !ok {
		return nil, vault.ErrNotFound
	}
	return data, nil
}

func (v *fakeVault) Close(context.Context) error { return nil }

type errContext string

func (e errContext) Error() string { return string(e) }

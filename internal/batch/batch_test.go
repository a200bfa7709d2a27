package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/DMA-Software/dma-golso/pkg/amf"
	"github.com/DMA-Software/dma-golso/pkg/sol"
)

func encodeDoc(t *testing.T, name string, v amf.Value) []byte {
	t.Helper()
	data, err := sol.Encode(&sol.Document{
		Header: sol.Header{Name: name, Version: amf.AMF3},
		Body:   []sol.Element{{Name: "value", Value: v}},
	}, sol.Options{})
	if err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return data
}

func TestRunChecksEveryJob(t *testing.T) {
	var jobs []Job
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("doc%02d.sol", i)
		jobs = append(jobs, Job{Name: name, Data: encodeDoc(t, name, amf.Integer(i))})
	}
	jobs = append(jobs, Job{Name: "broken.sol", Data: []byte{0x00, 0xBF, 0x00}})

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	r := NewRunner(sol.Options{}, 3, logger)

	results := r.Run(context.Background(), jobs)
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	if results[0].Name != "broken.sol" || !errors.Is(results[0].Err, amf.ErrTruncatedInput) {
		t.Fatalf("broken result = %+v", results[0])
	}
	for _, res := range results[1:] {
		if res.Err != nil || !res.Canonical {
			t.Errorf("%s: canonical=%v err=%v", res.Name, res.Canonical, res.Err)
		}
	}

	for _, e := range hook.AllEntries() {
		if e.Data["run"] != r.ID() {
			t.Fatalf("log entry without run id: %v", e.Data)
		}
	}
}

func TestRunKeepsDuplicateNames(t *testing.T) {
	good := encodeDoc(t, "a", amf.Integer(1))
	jobs := []Job{
		{Name: "a.sol", Data: []byte("garbage")},
		{Name: "a.sol", Data: good},
	}

	logger, _ := test.NewNullLogger()
	results := NewRunner(sol.Options{}, 2, logger).Run(context.Background(), jobs)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Index != 0 || results[0].Err == nil {
		t.Fatalf("first result = %+v", results[0])
	}
	if results[1].Index != 1 || results[1].Err != nil || !results[1].Canonical {
		t.Fatalf("second result = %+v", results[1])
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger, _ := test.NewNullLogger()
	r := NewRunner(sol.Options{}, 1, logger)
	results := r.Run(ctx, []Job{{Name: "a.sol", Data: encodeDoc(t, "a", amf.Null{})}})

	if len(results) != 1 || !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("results = %+v", results)
	}
}

func TestRunnerIDsDiffer(t *testing.T) {
	a := NewRunner(sol.Options{}, 0, nil)
	b := NewRunner(sol.Options{}, 0, nil)
	if a.ID() == b.ID() {
		t.Fatal("two runners share a run id")
	}
}

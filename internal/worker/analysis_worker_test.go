package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlens/internal/amqp"
	"spendlens/internal/analysis"
	"spendlens/internal/core"
	"spendlens/internal/report"
	"spendlens/internal/services"
)

type fakeAnalyzer struct {
	got []services.AnalysisRequest
	err error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req services.AnalysisRequest) (*services.AnalysisOutcome, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return &services.AnalysisOutcome{
		Result:  &analysis.Result{RunID: req.RunID, TotalSpend: core.Money{Cents: 123456}},
		Reports: []string{"/reports/a.md"},
	}, nil
}

type fakePublisher struct {
	msgs []*amqp.AnalysisCompletedMessage
	err  error
}

func (f *fakePublisher) PublishAnalysisCompleted(_ context.Context, msg *amqp.AnalysisCompletedMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func request(formats ...string) *amqp.AnalysisRequestMessage {
	msg := amqp.NewAnalysisRequestMessage("/data/invoice_cache.json", formats, true)
	msg.RunID = "run-1"
	return msg
}

func TestHandleRequest_Success(t *testing.T) {
	an := &fakeAnalyzer{}
	pub := &fakePublisher{}
	w := NewAnalysisWorker(an, pub, []report.Format{report.FormatMarkdown}, true)

	require.NoError(t, w.HandleRequest(context.Background(), request("csv", "pdf")))

	require.Len(t, an.got, 1)
	req := an.got[0]
	assert.Equal(t, "run-1", req.RunID)
	assert.Equal(t, "/data/invoice_cache.json", req.DatasetPath)
	assert.Equal(t, []report.Format{report.FormatCSV, report.FormatPDF}, req.Formats)
	assert.True(t, req.UseLLM)
	assert.True(t, req.LicensingOnly)
	assert.True(t, req.ExportSheets)

	require.Len(t, pub.msgs, 1)
	done := pub.msgs[0]
	assert.Equal(t, amqp.StatusSucceeded, done.Status)
	assert.Equal(t, []string{"/reports/a.md"}, done.Reports)
	assert.InDelta(t, 1234.56, done.TotalSpend, 0.001)
}

func TestHandleRequest_DefaultFormats(t *testing.T) {
	an := &fakeAnalyzer{}
	w := NewAnalysisWorker(an, nil, []report.Format{report.FormatJSON}, false)

	require.NoError(t, w.HandleRequest(context.Background(), request()))
	require.Len(t, an.got, 1)
	assert.Equal(t, []report.Format{report.FormatJSON}, an.got[0].Formats)
	assert.False(t, an.got[0].ExportSheets)
}

func TestHandleRequest_AnalyzeError(t *testing.T) {
	an := &fakeAnalyzer{err: errors.New("open dataset: no such file")}
	pub := &fakePublisher{}
	w := NewAnalysisWorker(an, pub, nil, false)

	err := w.HandleRequest(context.Background(), request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run-1")

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, amqp.StatusFailed, pub.msgs[0].Status)
	assert.Contains(t, pub.msgs[0].Error, "no such file")
}

func TestHandleRequest_BadFormatIsNotRetried(t *testing.T) {
	an := &fakeAnalyzer{}
	pub := &fakePublisher{}
	w := NewAnalysisWorker(an, pub, nil, false)

	require.NoError(t, w.HandleRequest(context.Background(), request("docx")))
	assert.Empty(t, an.got)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, amqp.StatusFailed, pub.msgs[0].Status)
}

func TestHandleRequest_PublishFailureIgnored(t *testing.T) {
	pub := &fakePublisher{err: amqp.ErrCircuitOpen}
	w := NewAnalysisWorker(&fakeAnalyzer{}, pub, nil, false)

	assert.NoError(t, w.HandleRequest(context.Background(), request()))
	assert.Len(t, pub.msgs, 1)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sakif/datachat/internal/analysis"
	"github.com/sakif/datachat/internal/apperror"
	"github.com/sakif/datachat/internal/model"
)

// fakeAnalyzer captures the outgoing request and returns a canned response
// or error.
type fakeAnalyzer struct {
	capturedReq analysis.Request
	returnResp  *analysis.Response
	returnErr   error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req analysis.Request) (*analysis.Response, error) {
	f.capturedReq = req
	if f.returnErr != nil {
		return nil, f.returnErr
	}
	return f.returnResp, nil
}

// fakeChatRepo is an in-memory repository.ChatRepository.
type fakeChatRepo struct {
	entries []*model.ChatEntry
}

func (f *fakeChatRepo) CreateChatEntry(ctx context.Context, entry *model.ChatEntry) error {
	copied := *entry
	f.entries = append(f.entries, &copied)
	return nil
}

func (f *fakeChatRepo) ListRecent(ctx context.Context, userID, datasetID string, limit int) ([]model.ChatEntry, error) {
	out := []model.ChatEntry{}
	// newest first
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := f.entries[i]
		if e.UserID != userID {
			continue
		}
		if datasetID != "" && e.DatasetID != datasetID {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func seedDataset(repo *fakeDatasetRepo, userID string, columns []string) *model.Dataset {
	ds := &model.Dataset{
		UserID:       userID,
		FilePath:     "/uploads/user_" + userID + "/1_data.csv",
		OriginalName: "data.csv",
		Columns:      columns,
	}
	repo.CreateDataset(context.Background(), ds)
	return ds
}

func newTestQueryService(t *testing.T, datasets *fakeDatasetRepo, history *fakeChatRepo, analyzer *fakeAnalyzer) *QueryService {
	t.Helper()
	return NewQueryService(datasets, history, analyzer, testLogger())
}

func TestAsk(t *testing.T) {
	datasets := &fakeDatasetRepo{}
	history := &fakeChatRepo{}
	analyzer := &fakeAnalyzer{
		returnResp: &analysis.Response{Answer: "42 rows", Code: "len(df)"},
	}
	svc := newTestQueryService(t, datasets, history, analyzer)
	ds := seedDataset(datasets, "user-1", []string{"name", "age"})

	resp, err := svc.Ask(context.Background(), "user-1", ds.ID, "how many rows?", nil)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Answer != "42 rows" {
		t.Errorf("Answer = %q, want %q", resp.Answer, "42 rows")
	}

	// The analyzer must receive the file path and schema, not raw user input
	if analyzer.capturedReq.FilePath != ds.FilePath {
		t.Errorf("sent FilePath = %q, want %q", analyzer.capturedReq.FilePath, ds.FilePath)
	}
	if cols := analyzer.capturedReq.Schema.Columns; len(cols) != 2 || cols[0] != "name" {
		t.Errorf("sent Schema.Columns = %v, want [name age]", cols)
	}

	// Exactly one history row, carrying answer and code
	if len(history.entries) != 1 {
		t.Fatalf("history rows = %d, want 1", len(history.entries))
	}
	entry := history.entries[0]
	if entry.UserID != "user-1" || entry.DatasetID != ds.ID {
		t.Errorf("history entry owner/dataset = %q/%q", entry.UserID, entry.DatasetID)
	}
	if entry.Answer != "42 rows" || entry.Code != "len(df)" {
		t.Errorf("history entry answer/code = %q/%q", entry.Answer, entry.Code)
	}
}

func TestAsk_Validation(t *testing.T) {
	datasets := &fakeDatasetRepo{}
	svc := newTestQueryService(t, datasets, &fakeChatRepo{}, &fakeAnalyzer{})
	ds := seedDataset(datasets, "user-1", []string{"a"})

	cases := []struct {
		name      string
		datasetID string
		question  string
	}{
		{"missing dataset", "", "how many rows?"},
		{"missing question", ds.ID, ""},
		{"whitespace question", ds.ID, "   \t  "},
		{"question too long", ds.ID, strings.Repeat("x", MaxQuestionLength+1)},
		{"multibyte question too long", ds.ID, strings.Repeat("ü", MaxQuestionLength+1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Ask(context.Background(), "user-1", tc.datasetID, tc.question, nil)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Ask() error = %v, want ErrValidation", err)
			}
		})
	}
}

// The cap counts characters, not bytes: a 500-rune question in a multibyte
// script is exactly at the limit and must go through.
func TestAsk_QuestionCapCountsRunes(t *testing.T) {
	datasets := &fakeDatasetRepo{}
	analyzer := &fakeAnalyzer{returnResp: &analysis.Response{Answer: "ok"}}
	svc := newTestQueryService(t, datasets, &fakeChatRepo{}, analyzer)
	ds := seedDataset(datasets, "user-1", []string{"a"})

	question := strings.Repeat("ü", MaxQuestionLength) // twice as many bytes
	if _, err := svc.Ask(context.Background(), "user-1", ds.ID, question, nil); err != nil {
		t.Errorf("Ask(500-rune multibyte question) error = %v, want nil", err)
	}
}

// Guessing another tenant's valid dataset ID must read as "not found".
func TestAsk_ForeignDatasetIsNotFound(t *testing.T) {
	datasets := &fakeDatasetRepo{}
	analyzer := &fakeAnalyzer{returnResp: &analysis.Response{Answer: "leak"}}
	svc := newTestQueryService(t, datasets, &fakeChatRepo{}, analyzer)
	aliceDS := seedDataset(datasets, "alice", []string{"secret"})

	_, err := svc.Ask(context.Background(), "bob", aliceDS.ID, "what is in here?", nil)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Ask() error = %v, want ErrNotFound", err)
	}
	if analyzer.capturedReq.FilePath != "" {
		t.Error("the analyzer was called for a foreign dataset")
	}
}

func TestAsk_CorruptSchemaAsksForReupload(t *testing.T) {
	datasets := &fakeDatasetRepo{}
	svc := newTestQueryService(t, datasets, &fakeChatRepo{}, &fakeAnalyzer{})
	ds := seedDataset(datasets, "user-1", nil) // schema missing/corrupt

	_, err := svc.Ask(context.Background(), "user-1", ds.ID, "anything", nil)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Ask() error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "re-upload") {
		t.Errorf("error %q should tell the user to re-upload", err.Error())
	}
}

// Upstream failures must keep their kind AND write no history.
func TestAsk_UpstreamFailuresWriteNoHistory(t *testing.T) {
	cases := []struct {
		name     string
		upstream error
		want     error
	}{
		{"timeout", fmt.Errorf("analysis: deadline: %w", apperror.ErrUpstreamTimeout), apperror.ErrUpstreamTimeout},
		{"unavailable", fmt.Errorf("analysis: refused: %w", apperror.ErrUpstreamUnavailable), apperror.ErrUpstreamUnavailable},
		{"other", errors.New("500 from upstream"), nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			datasets := &fakeDatasetRepo{}
			history := &fakeChatRepo{}
			svc := newTestQueryService(t, datasets, history, &fakeAnalyzer{returnErr: tc.upstream})
			ds := seedDataset(datasets, "user-1", []string{"a"})

			_, err := svc.Ask(context.Background(), "user-1", ds.ID, "question", nil)
			if err == nil {
				t.Fatal("Ask() succeeded despite upstream failure")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("Ask() error = %v, want kind %v", err, tc.want)
			}
			if len(history.entries) != 0 {
				t.Errorf("history rows = %d after a failed round-trip, want 0", len(history.entries))
			}
		})
	}
}

func TestHistory_CapsAtLimit(t *testing.T) {
	datasets := &fakeDatasetRepo{}
	history := &fakeChatRepo{}
	analyzer := &fakeAnalyzer{returnResp: &analysis.Response{Answer: "ok"}}
	svc := newTestQueryService(t, datasets, history, analyzer)
	ds := seedDataset(datasets, "user-1", []string{"a"})

	for i := 1; i <= 6; i++ {
		if _, err := svc.Ask(context.Background(), "user-1", ds.ID, fmt.Sprintf("question %d", i), nil); err != nil {
			t.Fatalf("Ask #%d: %v", i, err)
		}
	}

	entries, err := svc.History(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != HistoryLimit {
		t.Fatalf("len(entries) = %d, want %d", len(entries), HistoryLimit)
	}
	if entries[0].Question != "question 6" {
		t.Errorf("entries[0].Question = %q, want question 6 (newest first)", entries[0].Question)
	}
}

func TestHistory_ForeignDatasetFilterIsNotFound(t *testing.T) {
	datasets := &fakeDatasetRepo{}
	svc := newTestQueryService(t, datasets, &fakeChatRepo{}, &fakeAnalyzer{})
	aliceDS := seedDataset(datasets, "alice", []string{"a"})

	_, err := svc.History(context.Background(), "bob", aliceDS.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("History() error = %v, want ErrNotFound", err)
	}
}

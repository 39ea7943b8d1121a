package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/datachat/internal/analysis"
	"github.com/sakif/datachat/internal/apperror"
	"github.com/sakif/datachat/internal/model"
	"github.com/sakif/datachat/internal/repository"
)

const (
	// MaxQuestionLength caps a single question. The analysis service embeds
	// the question in a prompt; unbounded input is both a cost and an abuse
	// vector.
	MaxQuestionLength = 500

	// HistoryLimit is how many past exchanges a history read returns.
	HistoryLimit = 5
)

// Analyzer is the slice of the analysis client the query service needs.
//
// CONSUMER-SIDE INTERFACE:
// Declared here (not in the analysis package) so tests can substitute a fake
// without touching resty, and so this service states exactly what it depends
// on — one method.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Response, error)
}

// QueryService orchestrates one question/answer round-trip: ownership check,
// schema validation, the upstream call, and the history write.
type QueryService struct {
	datasets repository.DatasetRepository
	history  repository.ChatRepository
	analyzer Analyzer
	logger   *slog.Logger
}

func NewQueryService(
	datasets repository.DatasetRepository,
	history repository.ChatRepository,
	analyzer Analyzer,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		datasets: datasets,
		history:  history,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Ask answers one question about one dataset.
//
// TENANT ISOLATION:
// The dataset lookup is ALWAYS GetByIDAndOwner — id plus owner. There is no
// variant without the owner predicate, so a guessed dataset ID belonging to
// someone else is indistinguishable from a nonexistent one (both 404).
//
// HISTORY SEMANTICS:
// A history row is written only after the analysis service answered. Timeout,
// unreachable, and any other upstream failure leave history untouched — a
// failed question never appears in the audit trail. If the history write
// itself fails, the answer is still returned; losing one audit row beats
// discarding a computed answer.
func (s *QueryService) Ask(ctx context.Context, userID, datasetID, question string, turns []json.RawMessage) (*analysis.Response, error) {
	if datasetID == "" {
		return nil, apperror.ValidationFailed("datasetId", "dataset ID is required")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperror.ValidationFailed("question", "question is required")
	}
	// Rune count, not bytes — a question in a multibyte script gets the same
	// 500 characters as an ASCII one.
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return nil, apperror.ValidationFailed("question",
			fmt.Sprintf("question must be %d characters or less", MaxQuestionLength))
	}

	ds, err := s.datasets.GetByIDAndOwner(ctx, datasetID, userID)
	if err != nil {
		return nil, err
	}

	// Guards against corrupted or legacy metadata: a dataset row whose
	// schema document didn't decode (or decoded to nothing) can't be queried.
	if len(ds.Columns) == 0 {
		return nil, apperror.ValidationFailed("dataset",
			"dataset schema is missing or invalid, please re-upload the file")
	}

	resp, err := s.analyzer.Analyze(ctx, analysis.Request{
		FilePath: ds.FilePath,
		Schema:   analysis.Schema{Columns: ds.Columns},
		Question: question,
		Context:  turns,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrUpstreamTimeout):
			s.logger.Warn("analysis timed out",
				slog.String("userID", userID),
				slog.String("datasetID", datasetID),
			)
			return nil, apperror.UpstreamTimeout()
		case errors.Is(err, apperror.ErrUpstreamUnavailable):
			s.logger.Warn("analysis service unreachable",
				slog.String("userID", userID),
				slog.String("datasetID", datasetID),
			)
			return nil, apperror.UpstreamUnavailable()
		default:
			s.logger.Error("analysis request failed",
				slog.String("userID", userID),
				slog.String("datasetID", datasetID),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("service/query: analyzing question: %w", err)
		}
	}

	entry := &model.ChatEntry{
		UserID:    userID,
		DatasetID: ds.ID,
		Question:  question,
		Answer:    resp.Answer,
		Code:      resp.Code,
	}
	if err := s.history.CreateChatEntry(ctx, entry); err != nil {
		s.logger.Error("failed to persist chat history",
			slog.String("userID", userID),
			slog.String("datasetID", datasetID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("question answered",
		slog.String("userID", userID),
		slog.String("datasetID", datasetID),
		slog.Int("questionLen", len(question)),
	)

	return resp, nil
}

// History returns the caller's most recent exchanges, newest first, capped at
// HistoryLimit. datasetID (optional) narrows to one dataset; when set it is
// verified against the owner first so filtering by a foreign dataset behaves
// exactly like filtering by a nonexistent one.
func (s *QueryService) History(ctx context.Context, userID, datasetID string) ([]model.ChatEntry, error) {
	if datasetID != "" {
		if _, err := s.datasets.GetByIDAndOwner(ctx, datasetID, userID); err != nil {
			return nil, err
		}
	}

	entries, err := s.history.ListRecent(ctx, userID, datasetID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("service/query: listing history: %w", err)
	}

	return entries, nil
}

package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
	"github.com/oppuna-lab/oppuna/pkg/service/llm"
	memsvc "github.com/oppuna-lab/oppuna/pkg/service/memory"
	"github.com/oppuna-lab/oppuna/pkg/utils/async"
	"github.com/oppuna-lab/oppuna/pkg/utils/errutil"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

// Chat runs one conversation turn.
//
// The pipeline has three stages. Crisis detection and memory recall run
// concurrently first; their failures are isolated, so a recall error never
// blocks the reply and never masks the crisis flag. The reply is generated
// next. Persistence and follow-up generation then run concurrently on a
// detached context, so a client that disconnects after receiving nothing
// does not lose the transcript write.
//
// Crisis resources are appended to whatever reply is served, canned or not.
func (u *UseCases) Chat(ctx context.Context, userID, input string) (*model.ChatTurnResult, error) {
	userID = strings.TrimSpace(userID)
	input = strings.TrimSpace(input)
	if userID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "user ID is required")
	}
	if input == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "user input is required", goerr.V("userID", userID))
	}

	// Stage 1: crisis detection and memory recall, concurrently
	var (
		crisisFlag bool
		contextStr string
		wg         sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		crisisFlag = u.crisis.Check(input)
	}()
	go func() {
		defer wg.Done()
		records, err := u.memory.Recall(ctx, userID, input, u.recallLimit)
		if err != nil {
			_ = errutil.Handle(ctx, err, "memory recall failed, replying without context")
			return
		}
		contextStr = memsvc.FormatContext(records)
	}()
	wg.Wait()

	// Stage 2: reply generation
	prompt := "Current message: " + input
	if contextStr != "" {
		prompt = contextStr + "\n" + prompt
	}

	// Any generation failure, including ErrModelUnavailable with fallback
	// disabled, degrades to the apology reply. The boundary contract is a
	// 200 with a degraded payload, never a 5xx for dependency outages.
	reply, err := u.llmClient.GenerateReply(ctx, prompt)
	if err != nil {
		_ = errutil.Handle(ctx, err, "reply generation failed, serving apology")
		reply = &llm.Reply{Text: u.resources.ApologyReply, Degraded: true}
	}

	replyText := reply.Text
	if crisisFlag {
		replyText += u.resources.CrisisResourceText()
	}

	// Stage 3: persistence and follow-ups, concurrently. The context is
	// detached so a client disconnect does not abort the transcript write.
	stageCtx, cancel := context.WithTimeout(async.Detach(ctx), u.persistTimeout)
	defer cancel()

	followups := []string{}

	wg.Add(2)
	go func() {
		defer wg.Done()
		u.persistTurn(stageCtx, userID, input, replyText)
	}()
	go func() {
		defer wg.Done()
		result, err := u.llmClient.GenerateFollowups(stageCtx, input, reply.Text, u.maxFollowups)
		if err != nil {
			_ = errutil.Handle(stageCtx, err, "follow-up generation failed")
			return
		}
		followups = result
	}()
	wg.Wait()

	return &model.ChatTurnResult{
		Reply:               replyText,
		Crisis:              crisisFlag,
		FollowUpSuggestions: followups,
		Degraded:            reply.Degraded,
	}, nil
}

// persistTurn writes both sides of the exchange to memory and the
// transcript. Failures are logged, never surfaced: the user already has
// their reply.
func (u *UseCases) persistTurn(ctx context.Context, userID, input, replyText string) {
	logger := logging.From(ctx)

	if err := u.memory.Remember(ctx, userID, types.RoleUser, input); err != nil {
		logger.Error("failed to remember user turn", "userID", userID, "error", err)
	}
	if err := u.memory.Remember(ctx, userID, types.RoleAssistant, replyText); err != nil {
		logger.Error("failed to remember assistant turn", "userID", userID, "error", err)
	}

	turns := []*model.MemoryRecord{
		{ID: model.NewMemoryRecordID(), UserID: userID, Role: types.RoleUser, Text: input},
		{ID: model.NewMemoryRecordID(), UserID: userID, Role: types.RoleAssistant, Text: replyText},
	}
	for _, turn := range turns {
		if err := u.chatlog.Append(ctx, turn); err != nil {
			logger.Error("failed to append chat log", "userID", userID, "role", turn.Role, "error", err)
		}
	}
}

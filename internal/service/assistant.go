package service

import (
	"context"
	"fmt"
	"strings"

	"passport_studio/internal/imagegen"

	"github.com/sirupsen/logrus"
)

// Replies used when the model cannot answer
const (
	AssistantNoAnswer = "দুঃখিত, আমি বুঝতে পারিনি।"
	AssistantFailure  = "সার্ভারে সমস্যা হচ্ছে, কিছুক্ষণ পর আবার চেষ্টা করুন।"
)

// maxAssistantTurns caps how much history is forwarded
const maxAssistantTurns = 20

// Assistant answers customer questions with the text model
type Assistant struct {
	model  imagegen.Model
	policy Policy
	system string
}

// NewAssistant creates the assistant; its instruction embeds the price list
func NewAssistant(model imagegen.Model, policy Policy) *Assistant {
	return &Assistant{model: model, policy: policy, system: systemInstruction(policy)}
}

func systemInstruction(p Policy) string {
	return fmt.Sprintf(`You are a helpful and polite support assistant for a passport photo making application.

KEY INFORMATION:
1. Service: We create professional passport photos using AI.
2. Pricing: Each photo generation costs %d BDT. Regenerating inside the same editing session is free.
3. Payment/Recharge: Users must send money via 'Send Money' to %s (bKash Personal). Minimum recharge is %d BDT.
4. Issues: If balance is not added, users should provide their TrxID and Sender Number.
5. New Account Bonus: New users get %d BDT free balance.

RULES:
- Answer in Bengali (Bangla) primarily.
- Keep answers concise.`, p.GenerationCost, p.PaymentNumber, p.MinRecharge, p.WelcomeBonus)
}

// Ask forwards the question with recent history. Model errors become a fixed
// apology instead of an error.
func (a *Assistant) Ask(ctx context.Context, history []imagegen.Turn, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	if len(history) > maxAssistantTurns {
		history = history[len(history)-maxAssistantTurns:]
	}
	answer, err := a.model.Chat(ctx, a.system, history, question)
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Assistant request failed")
		return AssistantFailure, nil
	}
	if strings.TrimSpace(answer) == "" {
		return AssistantNoAnswer, nil
	}
	return answer, nil
}

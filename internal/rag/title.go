package rag

import (
	"context"
	"fmt"
	"strings"
)

// skipSentinel is the exact token the model returns when a message does not
// warrant a conversation title.
const skipSentinel = "SKIP"

const titlePrompt = `أنت مساعد ذكي ودقيق.
إذا كانت رسالة المستخدم التالية مجرد تحية أو كلام عابر، فأجب تمامًا بالكلمة:
SKIP

وإلا، قم بكتابة عنوان موجز جداً (لا يتجاوز 5 كلمات) يصف طلب المستخدم باختصار شديد، ويجب أن يكون العنوان باللغة العربية فقط.

رسالة المستخدم:
"""%s"""
`

// Title asks the model for a short conversation title summarizing the
// message. It returns "" (and no error) when the message is only a greeting
// or pleasantry and the conversation should keep its current title.
func (a *Answerer) Title(ctx context.Context, message string) (string, error) {
	out, err := a.generator.Generate(ctx, fmt.Sprintf(titlePrompt, message))
	if err != nil {
		return "", fmt.Errorf("generating title: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == skipSentinel {
		return "", nil
	}
	return out, nil
}

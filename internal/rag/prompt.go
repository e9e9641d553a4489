package rag

import (
	"fmt"
	"strings"
)

// Exchange is one completed question/answer pair of conversation history.
type Exchange struct {
	Question string
	Answer   string
}

// BuildPrompt assembles the generation prompt: instructions, retrieved
// context, prior exchanges, then the current question. The model is told to
// answer from the supplied context only.
func BuildPrompt(chunks []string, question string, history []Exchange) string {
	var b strings.Builder

	b.WriteString("أنت مساعد ذكي يجيب على أسئلة المستخدم اعتمادًا على المقاطع المرجعية المرفقة فقط.\n")
	b.WriteString("أجب باللغة العربية بدقة ووضوح، وإذا لم تجد الإجابة في المقاطع فقل إنك لا تملك معلومات كافية.\n\n")

	b.WriteString("المقاطع المرجعية:\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, chunk)
	}
	b.WriteString("\n")

	if len(history) > 0 {
		b.WriteString("المحادثة السابقة:\n")
		for _, ex := range history {
			fmt.Fprintf(&b, "المستخدم: %s\nالمساعد: %s\n", ex.Question, ex.Answer)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "سؤال المستخدم:\n%s\n", question)
	return b.String()
}

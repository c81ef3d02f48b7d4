package answer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mart1ny/rag-assistant/internal/domain"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
	"github.com/mart1ny/rag-assistant/internal/platform/openai"
)

const (
	maxHighlights      = 5
	minHighlightRunes  = 20
	contextCharBudget  = 600
	placeholderInsight = "Материалы подтверждают базовые определения и шаги RAG."

	closingSection = "#### Что дальше?\n" +
		"Если нужен пошаговый план или хочется раскрыть конкретный шаг, задай уточняющий вопрос — " +
		"я подберу дополнительные материалы."
)

const systemInstruction = "Ты — ассистент по учебным материалам курса. Отвечай кратко и по делу, " +
	"опираясь только на переданные фрагменты. Не выдумывай факты, которых нет в контексте. " +
	"Отвечай на русском языке списком из 3–5 пунктов Markdown."

// One fixed worked example keeps the model's output shape stable across calls.
var fewShot = []openai.Message{
	{
		Role: "user",
		Content: "Вопрос: Что такое чанкование документов?\n\nКонтекст:\n" +
			"Источник 1: Подготовка данных · rag-pipeline\n" +
			"Чанкование разбивает длинный документ на перекрывающиеся фрагменты фиксированного размера, " +
			"чтобы каждый фрагмент помещался в окно эмбеддинг-модели.",
	},
	{
		Role: "assistant",
		Content: "- Чанкование — разбиение документа на фрагменты фиксированного размера.\n" +
			"- Фрагменты часто перекрываются, чтобы не терять контекст на границах.\n" +
			"- Размер фрагмента подбирается под окно эмбеддинг-модели.",
	},
}

// ChatBackend is the slice of the generative client the synthesizer needs.
type ChatBackend interface {
	ChatText(ctx context.Context, messages []openai.Message, temperature float64, maxOutputTokens int) (string, error)
}

// Synthesizer produces the final Markdown answer. The generative tier is used
// when a backend is configured; any failure falls through to the extractive
// tier, which is a pure function of the retrieved chunks.
type Synthesizer struct {
	gen         ChatBackend
	log         *logger.Logger
	temperature float64
	maxTokens   int
	failOnce    sync.Once
}

func NewSynthesizer(gen ChatBackend, temperature float64, maxTokens int, log *logger.Logger) *Synthesizer {
	return &Synthesizer{
		gen:         gen,
		log:         log.With("service", "AnswerSynthesizer"),
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []domain.ContentChunk) string {
	if s.gen != nil && len(chunks) > 0 {
		if text, err := s.generate(ctx, question, chunks); err == nil {
			return composeAnswer(question, text, chunks)
		} else {
			s.failOnce.Do(func() {
				s.log.Warn("generative backend failed, using extractive answers", "error", err)
			})
		}
	}
	return composeAnswer(question, extractiveBody(chunks), chunks)
}

func (s *Synthesizer) generate(ctx context.Context, question string, chunks []domain.ContentChunk) (string, error) {
	messages := make([]openai.Message, 0, len(fewShot)+2)
	messages = append(messages, openai.Message{Role: "system", Content: systemInstruction})
	messages = append(messages, fewShot...)
	messages = append(messages, openai.Message{
		Role:    "user",
		Content: fmt.Sprintf("Вопрос: %s\n\nКонтекст:\n%s", question, contextBlock(chunks)),
	})

	text, err := s.gen.ChatText(ctx, messages, s.temperature, s.maxTokens)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("generative backend returned empty output")
	}
	return text, nil
}

func contextBlock(chunks []domain.ContentChunk) string {
	var b strings.Builder
	for i, chunk := range chunks {
		header := chunk.AssignmentTitle
		if chunk.Topic != nil && *chunk.Topic != "" {
			header += " · " + *chunk.Topic
		}
		fmt.Fprintf(&b, "Источник %d: %s\n%s\n\n", i+1, header, shorten(chunk.Content, contextCharBudget))
	}
	return strings.TrimSpace(b.String())
}

// Highlights extracts up to 5 sentence-like segments across chunks in chunk
// order: split on sentence punctuation, trimmed, at least 20 characters,
// case-insensitive deduplicated.
func Highlights(chunks []domain.ContentChunk) []string {
	highlights := make([]string, 0, maxHighlights)
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		for _, sentence := range splitSentences(chunk.Content) {
			normalized := strings.Trim(sentence, " \n\t;-")
			if len([]rune(normalized)) < minHighlightRunes {
				continue
			}
			lower := strings.ToLower(normalized)
			if seen[lower] {
				continue
			}
			seen[lower] = true
			highlights = append(highlights, normalized)
			if len(highlights) >= maxHighlights {
				return highlights
			}
		}
	}
	return highlights
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', '…':
			return true
		default:
			return false
		}
	})
}

func extractiveBody(chunks []domain.ContentChunk) string {
	highlights := Highlights(chunks)
	if len(highlights) == 0 {
		highlights = []string{placeholderInsight}
	}
	lines := make([]string, 0, len(highlights))
	for _, h := range highlights {
		lines = append(lines, "- "+h)
	}
	return strings.Join(lines, "\n")
}

// composeAnswer renders the Markdown document with a stable section order:
// summary heading, main body, source listing, closing invitation. Both tiers
// share the sources and closing sections so provenance is always visible.
func composeAnswer(question, body string, chunks []domain.ContentChunk) string {
	sections := []string{
		fmt.Sprintf("### Короткий ответ на запрос «%s»", question),
		"#### Главное\n\n" + body,
		renderSources(chunks),
		closingSection,
	}
	return strings.Join(sections, "\n\n")
}

func renderSources(chunks []domain.ContentChunk) string {
	var b strings.Builder
	b.WriteString("#### Использованные фрагменты\n")
	for i, chunk := range chunks {
		meta := chunk.AssignmentTitle
		if chunk.Topic != nil && *chunk.Topic != "" {
			meta += " · " + *chunk.Topic
		}
		sourceHint := ""
		if chunk.Source != nil && *chunk.Source != "" {
			chunkNo := 0
			if chunk.ChunkNumber != nil {
				chunkNo = *chunk.ChunkNumber
			}
			sourceHint = fmt.Sprintf(" (%s, chunk #%d)", *chunk.Source, chunkNo)
		}
		fmt.Fprintf(&b, "\n%d. **%s**%s\n   > %s\n", i+1, meta, sourceHint, strings.TrimSpace(chunk.Content))
	}
	return strings.TrimSpace(b.String())
}

func shorten(text string, budget int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return strings.TrimSpace(string(runes[:budget])) + "…"
}

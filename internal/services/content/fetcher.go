package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/nadimanwar794-eng/nst-core/internal/config"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// Fetcher добывает отсутствующий в каталоге контент у внешнего генератора.
type Fetcher interface {
	FetchLessonContent(ctx context.Context, key models.ContentKey, language string, contentType models.ContentType) (string, error)
}

// HTTPFetcher — клиент внешнего генератора контента.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPFetcher(cfg config.ContentFetch) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
	}
}

type fetchResponse struct {
	Content string `json:"content"`
}

// FetchLessonContent запрашивает материал главы. Любая ошибка транспорта
// транслируется вызывающему как временная: доступ не выдаётся, кредиты
// не списываются.
func (f *HTTPFetcher) FetchLessonContent(ctx context.Context, key models.ContentKey, language string, contentType models.ContentType) (string, error) {
	const op = "content.FetchLessonContent"

	q := url.Values{}
	q.Set("board", key.Board)
	q.Set("class", key.ClassLevel)
	if key.Stream != "" {
		q.Set("stream", key.Stream)
	}
	q.Set("subject", key.Subject)
	q.Set("chapter", key.ChapterID)
	q.Set("language", language)
	q.Set("type", string(contentType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/lesson?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var parsed fetchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if parsed.Content == "" {
		return "", fmt.Errorf("%s: empty content", op)
	}
	return parsed.Content, nil
}

package alpaca

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	bullishWords = []string{"beat", "beats", "surge", "soar", "rally", "record", "upgrade", "growth", "gain", "strong", "bullish", "raise"}
	bearishWords = []string{"miss", "misses", "plunge", "crash", "slump", "downgrade", "lawsuit", "recession", "loss", "weak", "bearish", "cut", "fear"}
)

// NewsSentiment puntúa los titulares recientes de Alpaca News con un léxico
// fijo. Implementa ports.SentimentSource.
type NewsSentiment struct {
	client  *Client
	symbols []string
	limit   int
}

// NewNewsSentiment crea la fuente de sentimiento para los símbolos dados.
func NewNewsSentiment(c *Client, symbols []string, limit int) *NewsSentiment {
	if limit <= 0 {
		limit = 10
	}
	return &NewsSentiment{client: c, symbols: symbols, limit: limit}
}

// Sentiment devuelve (bullish-bearish)/(bullish+bearish) sobre los titulares, en [-1, 1].
// Sin titulares o sin palabras reconocidas devuelve 0.
func (n *NewsSentiment) Sentiment(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(n.symbols, ","))
	q.Set("limit", strconv.Itoa(n.limit))
	var resp newsResponse
	if err := n.client.get(ctx, n.client.dataLimiter, n.client.cfg.DataBase+"/v1beta1/news?"+q.Encode(), &resp); err != nil {
		return 0, fmt.Errorf("alpaca.Sentiment: %w", err)
	}
	var bull, bear int
	for _, item := range resp.News {
		b, s := scoreHeadline(item.Headline)
		bull += b
		bear += s
	}
	if bull+bear == 0 {
		return 0, nil
	}
	return float64(bull-bear) / float64(bull+bear), nil
}

func scoreHeadline(h string) (bull, bear int) {
	for _, w := range strings.FieldsFunc(strings.ToLower(h), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		for _, b := range bullishWords {
			if w == b {
				bull++
			}
		}
		for _, s := range bearishWords {
			if w == s {
				bear++
			}
		}
	}
	return bull, bear
}

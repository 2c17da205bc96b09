package gmail

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/resilience"
)

// ErrHistoryExpired signals that the stored history cursor is no longer
// valid and a full sync is required.
var ErrHistoryExpired = eris.New("gmail: history id expired")

// Client wraps the Gmail service with pagination, rate limiting, and
// retries. All calls act on the authenticated user ("me").
type Client struct {
	svc       *gmailv1.Service
	userEmail string
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
}

// NewClient wraps an authenticated service. The user's address is fetched
// once so ingest can mark sent messages.
func NewClient(ctx context.Context, svc *gmailv1.Service) (*Client, error) {
	c := &Client{
		svc: svc,
		// Gmail grants 250 quota units/sec; messages.get costs 5.
		limiter: rate.NewLimiter(rate.Limit(40), 10),
		retry:   resilience.DefaultRetryConfig(),
	}
	profile, err := c.profile(ctx)
	if err != nil {
		return nil, err
	}
	c.userEmail = strings.ToLower(profile.EmailAddress)
	return c, nil
}

// UserEmail returns the authenticated account's address, lowercased.
func (c *Client) UserEmail() string { return c.userEmail }

func (c *Client) profile(ctx context.Context) (*gmailv1.Profile, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*gmailv1.Profile, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		p, err := c.svc.Users.GetProfile("me").Context(ctx).Do()
		return p, wrapAPIError(err, "get profile")
	})
}

// CurrentHistoryID returns the mailbox's current history cursor.
func (c *Client) CurrentHistoryID(ctx context.Context) (string, error) {
	p, err := c.profile(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(p.HistoryId, 10), nil
}

// SearchMessages returns the IDs of every message matching the Gmail search
// query, following pagination to the end.
func (c *Client) SearchMessages(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*gmailv1.ListMessagesResponse, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			call := c.svc.Users.Messages.List("me").Q(query).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			r, err := call.Do()
			return r, wrapAPIError(err, "list messages")
		})
		if err != nil {
			return nil, err
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

// GetMessage fetches a single message in full format.
func (c *Client) GetMessage(ctx context.Context, id string) (*gmailv1.Message, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*gmailv1.Message, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		m, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return m, wrapAPIError(err, "get message "+id)
	})
}

// FetchMessage fetches and parses a single message.
func (c *Client) FetchMessage(ctx context.Context, id string) (*model.Message, error) {
	raw, err := c.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return ParseMessage(raw, c.userEmail), nil
}

// ListHistory returns message IDs added since the given cursor. It returns
// ErrHistoryExpired when the cursor is too old, in which case the caller
// should fall back to a full sync.
func (c *Client) ListHistory(ctx context.Context, startHistoryID string) ([]string, error) {
	start, err := strconv.ParseUint(startHistoryID, 10, 64)
	if err != nil {
		return nil, ErrHistoryExpired
	}

	seen := make(map[string]bool)
	var ids []string
	pageToken := ""
	for {
		resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*gmailv1.ListHistoryResponse, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			call := c.svc.Users.History.List("me").StartHistoryId(start).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			r, err := call.Do()
			return r, wrapAPIError(err, "list history")
		})
		if err != nil {
			var apiErr *googleapi.Error
			if eris.As(err, &apiErr) && (apiErr.Code == 404 || apiErr.Code == 400) {
				return nil, ErrHistoryExpired
			}
			return nil, err
		}
		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message != nil && !seen[added.Message.Id] {
					seen[added.Message.Id] = true
					ids = append(ids, added.Message.Id)
				}
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

func wrapAPIError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if eris.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.Code) {
		return resilience.NewTransientError(eris.Wrap(err, "gmail: "+op), apiErr.Code)
	}
	return eris.Wrap(err, "gmail: "+op)
}

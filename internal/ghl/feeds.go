package ghl

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lherron/ghl2hs/internal/cursor"
	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/paging"
)

type body = map[string]interface{}

func items(b body, key string) ([]interface{}, bool) {
	v, ok := b[key].([]interface{})
	return v, ok
}

func decodeToken(token, feed string) (*cursor.Cursor, error) {
	if token == "" {
		return nil, nil
	}
	return cursor.Decode(token, feed)
}

func encodeToken(feed string, after []interface{}, afterID string) (string, error) {
	c, err := cursor.New(feed, after, afterID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", feed, paging.ErrMissingCursor)
	}
	return c.Encode()
}

// Contacts pages through the location's contacts using the meta
// startAfter/startAfterId pair.
func (c *Client) Contacts() paging.FetchFunc {
	return c.metaFeed("contacts", "/contacts/", "locationId", "contacts")
}

// Opportunities pages through the location's opportunities
func (c *Client) Opportunities() paging.FetchFunc {
	return c.metaFeed("opportunities", "/opportunities/search", "location_id", "opportunities")
}

func (c *Client) metaFeed(feed, path, locationParam, key string) paging.FetchFunc {
	return func(ctx context.Context, token string) (paging.Page, error) {
		cur, err := decodeToken(token, feed)
		if err != nil {
			return paging.Page{}, err
		}
		q := url.Values{}
		q.Set(locationParam, c.locationID)
		q.Set("limit", strconv.Itoa(PageSize))
		if cur != nil {
			cur.Apply(q, "startAfter", "startAfterId")
		}

		var resp body
		if err := c.get(ctx, path, q, &resp); err != nil {
			return paging.Page{}, err
		}
		list, ok := items(resp, key)
		if !ok {
			return paging.Page{}, fmt.Errorf("%s: response has no %q list", feed, key)
		}
		page := paging.Page{Items: documents(list)}
		if len(list) < PageSize {
			return page, nil
		}

		meta := domain.NewDocument(body{})
		if m, ok := resp["meta"].(body); ok {
			meta = domain.NewDocument(m)
		}
		var after []interface{}
		if v := meta.Value("startAfter"); v != nil {
			after = []interface{}{v}
		}
		page.Next, err = encodeToken(feed, after, meta.Str("startAfterId"))
		if err != nil {
			return paging.Page{}, err
		}
		return page, nil
	}
}

// Conversations pages through conversations using the sort values of the
// last conversation on each page.
func (c *Client) Conversations() paging.FetchFunc {
	const feed = "conversations"
	return func(ctx context.Context, token string) (paging.Page, error) {
		cur, err := decodeToken(token, feed)
		if err != nil {
			return paging.Page{}, err
		}
		q := url.Values{}
		q.Set("locationId", c.locationID)
		q.Set("limit", strconv.Itoa(PageSize))
		if cur != nil {
			cur.Apply(q, "startAfterDate", "")
		}

		var resp body
		if err := c.get(ctx, "/conversations/search", q, &resp); err != nil {
			return paging.Page{}, err
		}
		list, _ := items(resp, "conversations")
		page := paging.Page{Items: documents(list)}
		if len(list) < PageSize || len(page.Items) == 0 {
			return page, nil
		}
		last := page.Items[len(page.Items)-1]
		sortValues, _ := last.Value("sort").([]interface{})
		page.Next, err = encodeToken(feed, sortValues, last.ID)
		if err != nil || len(sortValues) == 0 {
			return paging.Page{}, fmt.Errorf("%s: %w", feed, paging.ErrMissingCursor)
		}
		return page, nil
	}
}

// Messages pages through one conversation's messages
func (c *Client) Messages(conversationID string) paging.FetchFunc {
	const feed = "messages"
	return func(ctx context.Context, token string) (paging.Page, error) {
		cur, err := decodeToken(token, feed)
		if err != nil {
			return paging.Page{}, err
		}
		q := url.Values{}
		q.Set("limit", strconv.Itoa(PageSize))
		if cur != nil {
			cur.Apply(q, "", "lastMessageId")
		}

		var resp body
		if err := c.get(ctx, "/conversations/"+url.PathEscape(conversationID)+"/messages", q, &resp); err != nil {
			return paging.Page{}, err
		}
		wrapper := domain.NewDocument(body{})
		if m, ok := resp["messages"].(body); ok {
			wrapper = domain.NewDocument(m)
		}
		list, _ := wrapper.Value("messages").([]interface{})
		page := paging.Page{Items: documents(list)}
		for _, d := range page.Items {
			if d.Str("conversationId") == "" {
				d.Body["conversationId"] = conversationID
			}
		}
		if more, _ := wrapper.Value("nextPage").(bool); !more {
			return page, nil
		}
		page.Next, err = encodeToken(feed, nil, wrapper.Str("lastMessageId"))
		if err != nil {
			return paging.Page{}, err
		}
		return page, nil
	}
}

// Notes fetches one contact's notes in a single page
func (c *Client) Notes(contactID string) paging.FetchFunc {
	return func(ctx context.Context, _ string) (paging.Page, error) {
		var resp body
		if err := c.get(ctx, "/contacts/"+url.PathEscape(contactID)+"/notes", nil, &resp); err != nil {
			return paging.Page{}, err
		}
		list, _ := items(resp, "notes")
		page := paging.Page{Items: documents(list)}
		for _, d := range page.Items {
			if d.Str("contactId") == "" {
				d.Body["contactId"] = contactID
			}
		}
		return page, nil
	}
}

// Businesses fetches the location's businesses in a single page
func (c *Client) Businesses() paging.FetchFunc {
	return c.singlePage("/businesses/", "businesses", false)
}

// CustomFields fetches the location's custom field definitions
func (c *Client) CustomFields() paging.FetchFunc {
	return c.singlePage("/locations/"+url.PathEscape(c.locationID)+"/customFields", "customFields", false)
}

// Calendars fetches the location's calendars. A response without the
// calendar list yields an empty page.
func (c *Client) Calendars() paging.FetchFunc {
	return c.singlePage("/calendars/", "calendars", true)
}

// Appointments fetches one calendar's events between from and to. A
// response without the event list yields an empty page.
func (c *Client) Appointments(calendarID string, from, to time.Time) paging.FetchFunc {
	return func(ctx context.Context, _ string) (paging.Page, error) {
		q := url.Values{}
		q.Set("locationId", c.locationID)
		q.Set("calendarId", calendarID)
		q.Set("startTime", strconv.FormatInt(from.UnixMilli(), 10))
		q.Set("endTime", strconv.FormatInt(to.UnixMilli(), 10))
		var resp body
		if err := c.get(ctx, "/calendars/events", q, &resp); err != nil {
			return paging.Page{}, err
		}
		list, _ := items(resp, "events")
		return paging.Page{Items: documents(list)}, nil
	}
}

func (c *Client) singlePage(path, key string, tolerant bool) paging.FetchFunc {
	return func(ctx context.Context, _ string) (paging.Page, error) {
		q := url.Values{}
		q.Set("locationId", c.locationID)
		var resp body
		if err := c.get(ctx, path, q, &resp); err != nil {
			return paging.Page{}, err
		}
		list, ok := items(resp, key)
		if !ok && !tolerant {
			return paging.Page{}, fmt.Errorf("%s: response has no %q list", path, key)
		}
		return paging.Page{Items: documents(list)}, nil
	}
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CachedSelector is one learned selector with its reliability history.
type CachedSelector struct {
	Domain       string  `json:"domain"`
	Field        string  `json:"field"`
	Selector     string  `json:"selector"`
	SuccessCount int     `json:"successCount"`
	FailCount    int     `json:"failCount"`
	Reliability  float64 `json:"reliability"`
	LastUsed     string  `json:"lastUsed,omitempty"`
	LastFailed   string  `json:"lastFailed,omitempty"`
}

// CacheStats summarizes the whole selector cache.
type CacheStats struct {
	TotalSelectors     int     `json:"totalSelectors"`
	Domains            int     `json:"domains"`
	TotalSuccesses     int     `json:"totalSuccesses"`
	TotalFailures      int     `json:"totalFailures"`
	OverallReliability float64 `json:"overallReliability"`
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func reliability(success, fail int) float64 {
	total := success + fail
	if total < 1 {
		total = 1
	}
	return float64(success) / float64(total)
}

// Learn records that selector successfully extracted field on the page at
// pageURL. An existing entry for the same (domain, field) is replaced by
// the new selector; its success count keeps growing.
func (s *Store) Learn(ctx context.Context, field, selector, pageURL string) error {
	domain := Domain(pageURL)
	now := nowUTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE selectors
		SET selector = ?, success_count = success_count + 1, last_used = ?
		WHERE domain = ? AND field = ?`,
		selector, now, domain, field)
	if err != nil {
		return fmt.Errorf("learn selector: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO selectors (domain, field, selector, success_count, last_used)
			VALUES (?, ?, ?, 1, ?)`,
			domain, field, selector, now)
		if err != nil {
			return fmt.Errorf("learn selector: %w", err)
		}
	}
	return nil
}

// Recall returns the cached selector for field on pageURL's domain, or
// (nil, nil) when nothing is cached.
func (s *Store) Recall(ctx context.Context, field, pageURL string) (*CachedSelector, error) {
	domain := Domain(pageURL)

	row := s.db.QueryRowContext(ctx, `
		SELECT selector, success_count, fail_count,
		       COALESCE(last_used, ''), COALESCE(last_failed, '')
		FROM selectors
		WHERE domain = ? AND field = ?`,
		domain, field)

	c := CachedSelector{Domain: domain, Field: field}
	err := row.Scan(&c.Selector, &c.SuccessCount, &c.FailCount, &c.LastUsed, &c.LastFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recall selector: %w", err)
	}
	c.Reliability = reliability(c.SuccessCount, c.FailCount)
	return &c, nil
}

// Fail records that a previously learned selector stopped working.
func (s *Store) Fail(ctx context.Context, field, selector, pageURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE selectors
		SET fail_count = fail_count + 1, last_failed = ?
		WHERE domain = ? AND field = ? AND selector = ?`,
		nowUTC(), Domain(pageURL), field, selector)
	if err != nil {
		return fmt.Errorf("record selector failure: %w", err)
	}
	return nil
}

// DomainSelectors returns every cached selector for a domain, most
// successful first.
func (s *Store) DomainSelectors(ctx context.Context, pageURL string) ([]CachedSelector, error) {
	domain := Domain(pageURL)

	rows, err := s.db.QueryContext(ctx, `
		SELECT field, selector, success_count, fail_count,
		       COALESCE(last_used, ''), COALESCE(last_failed, '')
		FROM selectors
		WHERE domain = ?
		ORDER BY success_count DESC`,
		domain)
	if err != nil {
		return nil, fmt.Errorf("list domain selectors: %w", err)
	}
	defer rows.Close()

	var out []CachedSelector
	for rows.Next() {
		c := CachedSelector{Domain: domain}
		if err := rows.Scan(&c.Field, &c.Selector, &c.SuccessCount, &c.FailCount, &c.LastUsed, &c.LastFailed); err != nil {
			return nil, fmt.Errorf("scan selector: %w", err)
		}
		c.Reliability = reliability(c.SuccessCount, c.FailCount)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Domains lists every domain with cached selectors.
func (s *Store) Domains(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT domain FROM selectors ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats aggregates cache-wide reliability.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT domain),
		       COALESCE(SUM(success_count), 0), COALESCE(SUM(fail_count), 0)
		FROM selectors`)

	var st CacheStats
	if err := row.Scan(&st.TotalSelectors, &st.Domains, &st.TotalSuccesses, &st.TotalFailures); err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	st.OverallReliability = reliability(st.TotalSuccesses, st.TotalFailures)
	return &st, nil
}

// Clear drops cached selectors for one domain, or all of them when domain
// is empty. Returns the number of deleted rows.
func (s *Store) Clear(ctx context.Context, domain string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if domain != "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM selectors WHERE domain = ?`, Domain(domain))
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM selectors`)
	}
	if err != nil {
		return 0, fmt.Errorf("clear selectors: %w", err)
	}
	return res.RowsAffected()
}

package db

import (
	"context"
	"database/sql"
)

const getScrapeStatus = `
select benchmark_id, status, attempt_count, last_attempt, error_message from scrape_status
where benchmark_id = ?
`

func (q *Queries) GetScrapeStatus(ctx context.Context, benchmarkID string) (ScrapeStatus, error) {
	row := q.db.QueryRowContext(ctx, getScrapeStatus, benchmarkID)
	var i ScrapeStatus
	err := row.Scan(
		&i.BenchmarkID,
		&i.Status,
		&i.AttemptCount,
		&i.LastAttempt,
		&i.ErrorMessage,
	)
	return i, err
}

// attempt_count never decreases, even if a stale value is written.
const upsertScrapeStatus = `
insert into scrape_status (benchmark_id, status, attempt_count, last_attempt, error_message)
values (?, ?, ?, ?, ?)
on conflict (benchmark_id) do update
set status = excluded.status,
    attempt_count = max(scrape_status.attempt_count, excluded.attempt_count),
    last_attempt = excluded.last_attempt,
    error_message = excluded.error_message
`

type UpsertScrapeStatusParams struct {
	BenchmarkID  string
	Status       Status
	AttemptCount int64
	LastAttempt  int64
	ErrorMessage string
}

func (q *Queries) UpsertScrapeStatus(ctx context.Context, arg UpsertScrapeStatusParams) error {
	_, err := q.db.ExecContext(ctx, upsertScrapeStatus,
		arg.BenchmarkID,
		arg.Status,
		arg.AttemptCount,
		arg.LastAttempt,
		arg.ErrorMessage,
	)
	return err
}

const listScrapeStatuses = `
select benchmark_id, status, attempt_count, last_attempt, error_message from scrape_status
order by benchmark_id
`

func (q *Queries) ListScrapeStatuses(ctx context.Context) ([]ScrapeStatus, error) {
	rows, err := q.db.QueryContext(ctx, listScrapeStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ScrapeStatus
	for rows.Next() {
		var i ScrapeStatus
		if err := rows.Scan(
			&i.BenchmarkID,
			&i.Status,
			&i.AttemptCount,
			&i.LastAttempt,
			&i.ErrorMessage,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countStatuses = `
select status, count(*) from scrape_status
group by status
order by status
`

func (q *Queries) CountStatuses(ctx context.Context) ([]StatusCount, error) {
	rows, err := q.db.QueryContext(ctx, countStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StatusCount
	for rows.Next() {
		var i StatusCount
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const nextPendingBenchmark = `
select b.id, b.grade_level, b.definition, b.subject, b.cpalms_url from benchmarks b
left join scrape_status s on s.benchmark_id = b.id
where b.cpalms_url != ''
  and (s.benchmark_id is null or (s.status = 'pending' and s.attempt_count < ?))
  and b.id >= ?
order by b.id
limit 1
`

type PendingBenchmarksParams struct {
	Ceiling int64
	// ids ordered before this one are ignored, empty matches every id
	StartFrom string
}

// NextPendingBenchmark returns sql.ErrNoRows when no benchmark is left to scrape.
func (q *Queries) NextPendingBenchmark(ctx context.Context, arg PendingBenchmarksParams) (Benchmark, error) {
	row := q.db.QueryRowContext(ctx, nextPendingBenchmark, arg.Ceiling, arg.StartFrom)
	var i Benchmark
	err := row.Scan(
		&i.ID,
		&i.GradeLevel,
		&i.Definition,
		&i.Subject,
		&i.CpalmsUrl,
	)
	return i, err
}

const countPendingBenchmarks = `
select count(*) from benchmarks b
left join scrape_status s on s.benchmark_id = b.id
where b.cpalms_url != ''
  and (s.benchmark_id is null or (s.status = 'pending' and s.attempt_count < ?))
  and b.id >= ?
`

func (q *Queries) CountPendingBenchmarks(ctx context.Context, arg PendingBenchmarksParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPendingBenchmarks, arg.Ceiling, arg.StartFrom)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const settleExhausted = `
update scrape_status
set status = 'failed',
    error_message = case when error_message = '' then ? else error_message end
where status = 'pending' and attempt_count >= ?
`

type SettleExhaustedParams struct {
	ErrorMessage string
	Ceiling      int64
}

func (q *Queries) SettleExhausted(ctx context.Context, arg SettleExhaustedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, settleExhausted, arg.ErrorMessage, arg.Ceiling)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const requeueFailed = `
update scrape_status
set status = 'pending'
where status = 'failed' and attempt_count < ?
`

func (q *Queries) RequeueFailed(ctx context.Context, ceiling int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, requeueFailed, ceiling)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanResources(rows *sql.Rows) ([]Resource, error) {
	defer rows.Close()
	var items []Resource
	for rows.Next() {
		var i Resource
		if err := rows.Scan(
			&i.ID,
			&i.BenchmarkID,
			&i.Title,
			&i.Url,
			&i.ResourceType,
			&i.Description,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

package db

import (
	"context"
)

const createBenchmark = `
insert into benchmarks (id, grade_level, definition, subject, cpalms_url)
values (?, ?, ?, ?, ?)
on conflict (id) do nothing
`

type CreateBenchmarkParams struct {
	ID         string
	GradeLevel string
	Definition string
	Subject    string
	CpalmsUrl  string
}

// CreateBenchmark returns 0 when the benchmark was already loaded, benchmarks are never updated.
func (q *Queries) CreateBenchmark(ctx context.Context, arg CreateBenchmarkParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createBenchmark,
		arg.ID,
		arg.GradeLevel,
		arg.Definition,
		arg.Subject,
		arg.CpalmsUrl,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getBenchmark = `
select id, grade_level, definition, subject, cpalms_url from benchmarks
where id = ?
`

func (q *Queries) GetBenchmark(ctx context.Context, id string) (Benchmark, error) {
	row := q.db.QueryRowContext(ctx, getBenchmark, id)
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

const listBenchmarks = `
select id, grade_level, definition, subject, cpalms_url from benchmarks
order by id
`

func (q *Queries) ListBenchmarks(ctx context.Context) ([]Benchmark, error) {
	rows, err := q.db.QueryContext(ctx, listBenchmarks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Benchmark
	for rows.Next() {
		var i Benchmark
		if err := rows.Scan(
			&i.ID,
			&i.GradeLevel,
			&i.Definition,
			&i.Subject,
			&i.CpalmsUrl,
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

const countBenchmarksWithoutUrl = `
select count(*) from benchmarks where cpalms_url = ''
`

func (q *Queries) CountBenchmarksWithoutUrl(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countBenchmarksWithoutUrl)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteResources = `
delete from resources where benchmark_id = ?
`

func (q *Queries) DeleteResources(ctx context.Context, benchmarkID string) error {
	_, err := q.db.ExecContext(ctx, deleteResources, benchmarkID)
	return err
}

const createResource = `
insert into resources (benchmark_id, title, url, resource_type, description, created_at)
values (?, ?, ?, ?, ?, ?)
on conflict (benchmark_id, url) do nothing
`

type CreateResourceParams struct {
	BenchmarkID  string
	Title        string
	Url          string
	ResourceType string
	Description  string
	CreatedAt    int64
}

// CreateResource returns 0 when a resource with the same url already exists for the benchmark.
func (q *Queries) CreateResource(ctx context.Context, arg CreateResourceParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createResource,
		arg.BenchmarkID,
		arg.Title,
		arg.Url,
		arg.ResourceType,
		arg.Description,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listResources = `
select id, benchmark_id, title, url, resource_type, description, created_at from resources
where benchmark_id = ?
order by id
`

func (q *Queries) ListResources(ctx context.Context, benchmarkID string) ([]Resource, error) {
	rows, err := q.db.QueryContext(ctx, listResources, benchmarkID)
	if err != nil {
		return nil, err
	}
	return scanResources(rows)
}

const listResourcesByType = `
select id, benchmark_id, title, url, resource_type, description, created_at from resources
where benchmark_id = ? and resource_type = ?
order by id
`

type ListResourcesByTypeParams struct {
	BenchmarkID  string
	ResourceType string
}

func (q *Queries) ListResourcesByType(ctx context.Context, arg ListResourcesByTypeParams) ([]Resource, error) {
	rows, err := q.db.QueryContext(ctx, listResourcesByType, arg.BenchmarkID, arg.ResourceType)
	if err != nil {
		return nil, err
	}
	return scanResources(rows)
}

const deleteAccessPoints = `
delete from access_points where benchmark_id = ?
`

func (q *Queries) DeleteAccessPoints(ctx context.Context, benchmarkID string) error {
	_, err := q.db.ExecContext(ctx, deleteAccessPoints, benchmarkID)
	return err
}

const createAccessPoint = `
insert into access_points (benchmark_id, access_point_id, description)
values (?, ?, ?)
on conflict (benchmark_id, access_point_id) do update
set description = excluded.description
where excluded.description != ''
`

type CreateAccessPointParams struct {
	BenchmarkID   string
	AccessPointID string
	Description   string
}

func (q *Queries) CreateAccessPoint(ctx context.Context, arg CreateAccessPointParams) error {
	_, err := q.db.ExecContext(ctx, createAccessPoint, arg.BenchmarkID, arg.AccessPointID, arg.Description)
	return err
}

const listAccessPoints = `
select benchmark_id, access_point_id, description from access_points
where benchmark_id = ?
order by access_point_id
`

func (q *Queries) ListAccessPoints(ctx context.Context, benchmarkID string) ([]AccessPoint, error) {
	rows, err := q.db.QueryContext(ctx, listAccessPoints, benchmarkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccessPoint
	for rows.Next() {
		var i AccessPoint
		if err := rows.Scan(&i.BenchmarkID, &i.AccessPointID, &i.Description); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

package sqlinline

// Schema statements are idempotent and run in order at start-up.

const QCreateTasksTable = `--sql 755e6cba-8453-4431-8737-941c3919f500
create table if not exists tasks (
    client_id     text        not null,
    sha256        text        not null,
    type          text        not null check (type in ('doc', 'form', 'fill')),
    status        text        not null check (status in ('processing', 'completed', 'error')),
    result        text,
    error_detail  text,
    created_at    timestamptz not null default now(),
    last_accessed timestamptz not null default now(),
    primary key (client_id, sha256, type)
);
`

const QCreateTasksClientIndex = `--sql 939bced4-303e-497d-8a23-f40b213c62b1
create index if not exists idx_tasks_client_sha on tasks (client_id, sha256);
`

const QCreateTasksAccessIndex = `--sql c0a301b3-5746-4cb7-8a7f-9bab7f2f871f
create index if not exists idx_tasks_last_accessed on tasks (last_accessed);
`

const QCreateIntegrationTokensTable = `--sql 8d25cd28-feaa-423b-83b0-fd25e3712b17
create table if not exists integration_tokens (
    provider   text        primary key,
    token      text        not null,
    properties jsonb       not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

// SchemaStatements lists the schema statements in execution order.
var SchemaStatements = []string{
	QCreateTasksTable,
	QCreateTasksClientIndex,
	QCreateTasksAccessIndex,
	QCreateIntegrationTokensTable,
}

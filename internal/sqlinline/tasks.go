package sqlinline

// Task rows are addressed by (client_id, sha256, type). Every statement here
// touches at most one row except the eviction and whole-client clear.

const QInsertProcessingTask = `--sql d35b00b1-eda1-4e8c-8198-427c528f49b7
insert into tasks (client_id, sha256, type, status, created_at, last_accessed)
values ($1::text, $2::text, $3::text, 'processing', now(), now())
on conflict (client_id, sha256, type) do nothing;
`

// QLookupTask reads a row and refreshes last_accessed in one statement.
const QLookupTask = `--sql 85b0144b-9b3e-4be1-9817-1af697658bf5
update tasks
set last_accessed = now()
where client_id = $1::text and sha256 = $2::text and type = $3::text
returning status, coalesce(result, ''), coalesce(error_detail, ''), created_at, last_accessed;
`

const QWriteTaskResult = `--sql 7ae4be25-cf81-40a1-8f23-1574aeb5558e
update tasks
set status = 'completed', result = $4::text, error_detail = null, last_accessed = now()
where client_id = $1::text and sha256 = $2::text and type = $3::text
  and status = 'processing';
`

const QWriteTaskError = `--sql 1ff6eb5b-23ae-46e3-8cf6-355f2638de10
update tasks
set status = 'error', error_detail = $4::text, result = null, last_accessed = now()
where client_id = $1::text and sha256 = $2::text and type = $3::text
  and status = 'processing';
`

const QTouchTask = `--sql 2f588b63-05a8-4de9-9cb7-1068e2861536
update tasks
set last_accessed = now()
where client_id = $1::text and sha256 = $2::text and type = $3::text;
`

const QEvictTasksBefore = `--sql b17e00d5-83f8-4780-9505-d01fc2e81842
delete from tasks
where last_accessed < $1::timestamptz;
`

const QClearClientTasks = `--sql 5895b32b-cc33-471e-a478-e64c9995f8ef
delete from tasks
where client_id = $1::text;
`

const QClearClientTask = `--sql edfc63dc-0f83-4b2a-9dff-47ff3d90fda8
delete from tasks
where client_id = $1::text and sha256 = $2::text and type = $3::text;
`

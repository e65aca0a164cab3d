package sqlinline

const QSelectIntegrationToken = `--sql d44edae9-755b-4abf-b320-e1f0acead0d6
select token
from integration_tokens
where provider = $1::text;
`

const QUpsertIntegrationToken = `--sql 7b5158f3-3b22-424c-974e-2acfde596dc1
insert into integration_tokens (provider, token, properties, created_at, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

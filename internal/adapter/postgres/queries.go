package postgres

const queryCreateTable = `
	CREATE TABLE IF NOT EXISTS compiled_masks (
		name            text PRIMARY KEY,
		masked_fields   text[] NOT NULL DEFAULT '{}',
		original        jsonb NOT NULL,
		param           jsonb,
		serialized_mask text NOT NULL,
		created_at      timestamptz NOT NULL,
		updated_at      timestamptz NOT NULL
	)`

// queryUpsertMask keeps created_at of an existing row.
const queryUpsertMask = `
	INSERT INTO compiled_masks (name, masked_fields, original, param, serialized_mask, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (name) DO UPDATE SET
		masked_fields   = EXCLUDED.masked_fields,
		original        = EXCLUDED.original,
		param           = EXCLUDED.param,
		serialized_mask = EXCLUDED.serialized_mask,
		updated_at      = EXCLUDED.updated_at`

const queryGetMask = `
	SELECT name, masked_fields, original, param, serialized_mask, created_at, updated_at
	FROM compiled_masks
	WHERE name = $1`

const queryListMasks = `
	SELECT name, masked_fields, updated_at
	FROM compiled_masks
	ORDER BY name`

const queryDeleteMask = `DELETE FROM compiled_masks WHERE name = $1`

// Package repo provides the Postgres binding for domain.DocumentStore
package repo

import (
	"context"
	"encoding/json"

	"graphpipe/internal/modkit/repokit"
	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/services/pipeline/domain"
)

type queries struct{ q repokit.Queryer }

// pgBinder binds the document queries to a specific Queryer, usually either
// the pool or an open transaction
var pgBinder = repokit.BindFunc[*queries](func(q repokit.Queryer) *queries { return &queries{q: q} })

// Store implements domain.DocumentStore on top of a TxRunner so the
// sentence-and-relations write can run atomically
type Store struct {
	db repokit.TxRunner
}

// Compile-time assertion: Store implements domain.DocumentStore
var _ domain.DocumentStore = (*Store)(nil)

// New returns a DocumentStore backed by Postgres
func New(db repokit.TxRunner) *Store {
	if db == nil {
		panic("repo: nil TxRunner")
	}
	return &Store{db: db}
}

// InitSchema creates the pipeline tables when absent. Safe to run on every
// worker start
func (s *Store) InitSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS documents (
			source_id   INT         NOT NULL,
			doc_id      TEXT        NOT NULL,
			description TEXT        NOT NULL DEFAULT '',
			status      INT         NOT NULL DEFAULT 1,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (source_id, doc_id)
		);
		CREATE TABLE IF NOT EXISTS sentences (
			source_id      INT         NOT NULL,
			doc_id         TEXT        NOT NULL,
			sentence_index INT         NOT NULL,
			sentence       TEXT        NOT NULL,
			mentions       JSONB       NOT NULL DEFAULT '[]',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (source_id, doc_id, sentence_index)
		);
		CREATE TABLE IF NOT EXISTS entities (
			type_id     INT  NOT NULL,
			external_id TEXT NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (type_id, external_id)
		);
		CREATE TABLE IF NOT EXISTS relations (
			id                 BIGSERIAL PRIMARY KEY,
			source_id          INT              NOT NULL,
			doc_id             TEXT             NOT NULL,
			sentence_index     INT              NOT NULL,
			scoring_service_id TEXT             NOT NULL,
			model_version      TEXT             NOT NULL,
			entity1_type       INT              NOT NULL,
			entity1_id         TEXT             NOT NULL,
			entity2_type       INT              NOT NULL,
			entity2_id         TEXT             NOT NULL,
			relation           TEXT             NOT NULL,
			score              DOUBLE PRECISION NOT NULL,
			aux_data           JSONB,
			created_at         TIMESTAMPTZ      NOT NULL DEFAULT now(),
			UNIQUE (source_id, doc_id, sentence_index, scoring_service_id, model_version,
				entity1_type, entity1_id, entity2_type, entity2_id, relation)
		);
	`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return perr.FromPostgres(err, "init pipeline schema")
	}
	return nil
}

// UpsertDocument inserts or refreshes a document. The status written is
// GREATEST(existing, new) so a late or replayed producer can never regress
// a document's progress
func (s *Store) UpsertDocument(ctx context.Context, doc domain.Document) error {
	return repokit.MustBind(pgBinder, s.db).upsertDocument(ctx, doc)
}

// UpdateDocumentStatus advances a document's status, creating the row when
// missing. Same monotonic guard as UpsertDocument
func (s *Store) UpdateDocumentStatus(ctx context.Context, ref domain.DocRef, status domain.DocStatus) error {
	return repokit.MustBind(pgBinder, s.db).upsertDocument(ctx, domain.Document{DocRef: ref, Status: status})
}

func (r *queries) upsertDocument(ctx context.Context, doc domain.Document) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO documents (source_id, doc_id, description, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id, doc_id) DO UPDATE SET
			status      = GREATEST(documents.status, EXCLUDED.status),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), documents.description),
			updated_at  = now()
	`, doc.SourceID, doc.DocID, doc.Description, int(doc.Status))
	if err != nil {
		return perr.FromPostgres(err, "upsert document")
	}
	return nil
}

// FilterUnprocessed returns, in input order, the refs with no document row
// yet. One round trip via parallel unnest arrays
func (s *Store) FilterUnprocessed(ctx context.Context, refs []domain.DocRef) ([]domain.DocRef, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	sourceIDs := make([]int, len(refs))
	docIDs := make([]string, len(refs))
	for i, ref := range refs {
		sourceIDs[i] = ref.SourceID
		docIDs[i] = ref.DocID
	}

	rows, err := s.db.Query(ctx, `
		SELECT t.source_id, t.doc_id
		FROM unnest($1::int[], $2::text[]) WITH ORDINALITY AS t(source_id, doc_id, ord)
		LEFT JOIN documents d ON d.source_id = t.source_id AND d.doc_id = t.doc_id
		WHERE d.doc_id IS NULL
		ORDER BY t.ord
	`, sourceIDs, docIDs)
	if err != nil {
		return nil, perr.FromPostgres(err, "filter unprocessed")
	}
	defer rows.Close()

	var out []domain.DocRef
	for rows.Next() {
		var ref domain.DocRef
		if err := rows.Scan(&ref.SourceID, &ref.DocID); err != nil {
			return nil, perr.FromPostgres(err, "filter unprocessed scan")
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.FromPostgres(err, "filter unprocessed rows")
	}
	return out, nil
}

// UpsertSentenceAndRelations persists one scored sentence with its entities
// and relations in a single transaction. Replays land on the same keys, so
// at-least-once delivery upstream cannot duplicate rows
func (s *Store) UpsertSentenceAndRelations(ctx context.Context, rec domain.SentenceScoring) error {
	return repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		r := repokit.MustBind(pgBinder, q)
		if err := r.upsertSentence(ctx, rec.StoredSentence); err != nil {
			return err
		}
		if err := r.upsertEntities(ctx, rec.Entities); err != nil {
			return err
		}
		return r.upsertRelations(ctx, rec.StoredSentence, rec.Relations)
	})
}

func (r *queries) upsertSentence(ctx context.Context, s domain.StoredSentence) error {
	mentions, err := json.Marshal(s.Mentions)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode mentions")
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO sentences (source_id, doc_id, sentence_index, sentence, mentions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_id, doc_id, sentence_index) DO UPDATE SET
			sentence = EXCLUDED.sentence,
			mentions = EXCLUDED.mentions
	`, s.SourceID, s.DocID, s.SentenceIndex, s.Text, mentions)
	if err != nil {
		return perr.FromPostgres(err, "upsert sentence")
	}
	return nil
}

func (r *queries) upsertEntities(ctx context.Context, ents []domain.Entity) error {
	if len(ents) == 0 {
		return nil
	}

	typeIDs := make([]int, len(ents))
	ids := make([]string, len(ents))
	names := make([]string, len(ents))
	for i, e := range ents {
		typeIDs[i] = e.TypeID
		ids[i] = e.ID
		names[i] = e.Name
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO entities (type_id, external_id, name)
		SELECT DISTINCT ON (t.type_id, t.external_id) t.type_id, t.external_id, t.name
		FROM unnest($1::int[], $2::text[], $3::text[]) AS t(type_id, external_id, name)
		ON CONFLICT (type_id, external_id) DO UPDATE SET name = EXCLUDED.name
	`, typeIDs, ids, names)
	if err != nil {
		return perr.FromPostgres(err, "upsert entities")
	}
	return nil
}

func (r *queries) upsertRelations(ctx context.Context, s domain.StoredSentence, rels []domain.Relation) error {
	for _, rel := range rels {
		_, err := r.q.Exec(ctx, `
			INSERT INTO relations (
				source_id, doc_id, sentence_index, scoring_service_id, model_version,
				entity1_type, entity1_id, entity2_type, entity2_id, relation, score, aux_data
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (source_id, doc_id, sentence_index, scoring_service_id, model_version,
				entity1_type, entity1_id, entity2_type, entity2_id, relation)
			DO UPDATE SET score = EXCLUDED.score, aux_data = EXCLUDED.aux_data
		`, s.SourceID, s.DocID, s.SentenceIndex, rel.ScoringServiceID, rel.ModelVersion,
			rel.Entity1.TypeID, rel.Entity1.ID, rel.Entity2.TypeID, rel.Entity2.ID,
			rel.RelationType, rel.Score, []byte(rel.AuxData))
		if err != nil {
			return perr.FromPostgres(err, "upsert relation")
		}
	}
	return nil
}

// StreamDocuments pages through every document known at call time and invokes
// fn synchronously per ref
func (s *Store) StreamDocuments(ctx context.Context, pageSize int, fn func(domain.DocRef) error) error {
	return scanBatches(ctx, pageSize, func(ctx context.Context, p page) (int, error) {
		rows, err := s.db.Query(ctx, `
			SELECT source_id, doc_id
			FROM documents
			WHERE created_at <= $1
			ORDER BY source_id, doc_id
			LIMIT $2 OFFSET $3
		`, p.asOf, p.limit, p.offset)
		if err != nil {
			return 0, perr.FromPostgres(err, "stream documents")
		}
		defer rows.Close()

		n := 0
		for rows.Next() {
			var ref domain.DocRef
			if err := rows.Scan(&ref.SourceID, &ref.DocID); err != nil {
				return n, perr.FromPostgres(err, "stream documents scan")
			}
			n++
			if err := fn(ref); err != nil {
				return n, err
			}
		}
		if err := rows.Err(); err != nil {
			return n, perr.FromPostgres(err, "stream documents rows")
		}
		return n, nil
	})
}

// StreamSentences pages through every stored sentence known at call time and
// invokes fn synchronously per row
func (s *Store) StreamSentences(ctx context.Context, pageSize int, fn func(domain.StoredSentence) error) error {
	return scanBatches(ctx, pageSize, func(ctx context.Context, p page) (int, error) {
		rows, err := s.db.Query(ctx, `
			SELECT source_id, doc_id, sentence_index, sentence, mentions
			FROM sentences
			WHERE created_at <= $1
			ORDER BY source_id, doc_id, sentence_index
			LIMIT $2 OFFSET $3
		`, p.asOf, p.limit, p.offset)
		if err != nil {
			return 0, perr.FromPostgres(err, "stream sentences")
		}
		defer rows.Close()

		n := 0
		for rows.Next() {
			var (
				sent     domain.StoredSentence
				mentions []byte
			)
			if err := rows.Scan(&sent.SourceID, &sent.DocID, &sent.SentenceIndex, &sent.Text, &mentions); err != nil {
				return n, perr.FromPostgres(err, "stream sentences scan")
			}
			if len(mentions) > 0 {
				if err := json.Unmarshal(mentions, &sent.Mentions); err != nil {
					return n, perr.Wrap(err, perr.ErrorCodeJSON, "decode mentions")
				}
			}
			n++
			if err := fn(sent); err != nil {
				return n, err
			}
		}
		if err := rows.Err(); err != nil {
			return n, perr.FromPostgres(err, "stream sentences rows")
		}
		return n, nil
	})
}

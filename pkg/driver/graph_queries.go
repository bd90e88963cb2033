package driver

import (
	"fmt"
	"strings"

	"github.com/soundprediction/recall/pkg/types"
)

// Index names. Ladybug names its full-text index per table, so the label is
// carried alongside.
const (
	StatementFulltextIndex = "statement_fact_index"
	StatementVectorIndex   = "statement_fact_embedding"
	EntityVectorIndex      = "entity_name_embedding"

	ladybugStatementFTSIndex = "statement_fact"
)

// candidateMultiplier widens index lookups so post-index filtering still
// leaves enough rows to fill the requested limit.
const candidateMultiplier = 3

// statementProjection is the shared tail of every statement query. It
// expects s and score in scope and resolves triple parts and provenance.
const statementProjection = `
OPTIONAL MATCH (s)-[:HAS_SUBJECT]->(subj:Entity)
OPTIONAL MATCH (s)-[:HAS_PREDICATE]->(pred:Entity)
OPTIONAL MATCH (s)-[:HAS_OBJECT]->(obj:Entity)
OPTIONAL MATCH (ep:Episode)-[:HAS_PROVENANCE]->(s)
WITH s, score, hops, subj, pred, obj, count(ep) AS provenance_count
RETURN s.uuid AS uuid, s.fact AS fact, s.fact_embedding AS fact_embedding,
       s.user_id AS user_id, s.space_ids AS space_ids,
       s.valid_at AS valid_at, s.invalid_at AS invalid_at, s.created_at AS created_at,
       s.recall_count AS recall_count, s.attributes AS attributes,
       subj.name AS subject, subj.type AS subject_type,
       pred.name AS predicate,
       obj.name AS object, obj.type AS object_type,
       provenance_count, score, hops`

// QueryBuilder renders provider-specific Cypher for the retrieval queries.
type QueryBuilder struct {
	provider GraphProvider
}

// NewQueryBuilder creates a new query builder for the specified provider
func NewQueryBuilder(provider GraphProvider) *QueryBuilder {
	return &QueryBuilder{provider: provider}
}

// GetProvider returns the current provider
func (qb *QueryBuilder) GetProvider() GraphProvider {
	return qb.provider
}

// filterClause renders the WHERE conditions for filter against alias s and
// adds their parameters to params.
func (qb *QueryBuilder) filterClause(filter types.StatementFilter, params map[string]any) string {
	conds := []string{
		"s.user_id = $user_id",
		"s.valid_at <= $end_time",
	}
	params["user_id"] = filter.UserID
	params["end_time"] = filter.EndTime

	if filter.StartTime != nil {
		conds = append(conds, "s.valid_at >= $start_time")
		params["start_time"] = *filter.StartTime
	}
	if !filter.IncludeInvalidated {
		conds = append(conds, "(s.invalid_at IS NULL OR s.invalid_at > $invalidation_cutoff)")
		params["invalidation_cutoff"] = filter.InvalidationCutoff
	}
	if len(filter.SpaceIDs) > 0 {
		if qb.provider == GraphProviderLadybug {
			conds = append(conds, "size(list_intersect(s.space_ids, $space_ids)) > 0")
		} else {
			conds = append(conds, "any(space_id IN s.space_ids WHERE space_id IN $space_ids)")
		}
		params["space_ids"] = filter.SpaceIDs
	}
	if len(filter.EntityTypes) > 0 {
		conds = append(conds, "EXISTS { MATCH (s)-[:HAS_SUBJECT|HAS_OBJECT]->(typed:Entity) WHERE typed.type IN $entity_types }")
		params["entity_types"] = filter.EntityTypes
	}
	if len(filter.PredicateTypes) > 0 {
		conds = append(conds, "EXISTS { MATCH (s)-[:HAS_PREDICATE]->(p:Entity) WHERE p.name IN $predicate_types }")
		params["predicate_types"] = filter.PredicateTypes
	}
	return strings.Join(conds, "\n  AND ")
}

// FulltextStatementQuery returns the indexed full-text search over statement facts.
func (qb *QueryBuilder) FulltextStatementQuery(query string, filter types.StatementFilter, limit int) (string, map[string]any) {
	params := map[string]any{
		"query":      query,
		"limit":      int64(limit),
		"candidates": int64(limit * candidateMultiplier),
	}

	var head string
	switch qb.provider {
	case GraphProviderLadybug:
		head = fmt.Sprintf("CALL QUERY_FTS_INDEX('Statement', '%s', cast($query AS STRING), TOP := $candidates)\nYIELD node AS s, score", ladybugStatementFTSIndex)
	default:
		head = fmt.Sprintf("CALL db.index.fulltext.queryNodes('%s', $query, {limit: $candidates})\nYIELD node AS s, score", StatementFulltextIndex)
	}

	q := fmt.Sprintf(`%s
WITH s, score, 0 AS hops
WHERE %s%s
ORDER BY score DESC
LIMIT $limit`, head, qb.filterClause(filter, params), statementProjection)
	return q, params
}

// VectorStatementQuery returns nearest-neighbor search over fact embeddings.
func (qb *QueryBuilder) VectorStatementQuery(embedding []float32, filter types.StatementFilter, limit int, minScore float64) (string, map[string]any) {
	params := map[string]any{
		"embedding":  float32sToFloat64s(embedding),
		"limit":      int64(limit),
		"candidates": int64(limit * candidateMultiplier),
		"min_score":  minScore,
	}

	var head string
	switch qb.provider {
	case GraphProviderLadybug:
		head = fmt.Sprintf(`MATCH (s:Statement)
WHERE s.fact_embedding IS NOT NULL
WITH s, array_cosine_similarity(CAST(s.fact_embedding AS FLOAT[%d]), CAST($embedding AS FLOAT[%d])) AS score`, len(embedding), len(embedding))
	default:
		head = fmt.Sprintf("CALL db.index.vector.queryNodes('%s', $candidates, $embedding)\nYIELD node AS s, score", StatementVectorIndex)
	}

	q := fmt.Sprintf(`%s
WITH s, score, 0 AS hops
WHERE score >= $min_score
  AND %s%s
ORDER BY score DESC
LIMIT $limit`, head, qb.filterClause(filter, params), statementProjection)
	return q, params
}

// EntitySeedQuery returns nearest-neighbor search over entity name embeddings.
func (qb *QueryBuilder) EntitySeedQuery(embedding []float32, userID string, limit int, minScore float64) (string, map[string]any) {
	params := map[string]any{
		"embedding":  float32sToFloat64s(embedding),
		"user_id":    userID,
		"limit":      int64(limit),
		"candidates": int64(limit * candidateMultiplier),
		"min_score":  minScore,
	}

	var head string
	switch qb.provider {
	case GraphProviderLadybug:
		head = fmt.Sprintf(`MATCH (e:Entity)
WHERE e.name_embedding IS NOT NULL
WITH e, array_cosine_similarity(CAST(e.name_embedding AS FLOAT[%d]), CAST($embedding AS FLOAT[%d])) AS score`, len(embedding), len(embedding))
	default:
		head = fmt.Sprintf("CALL db.index.vector.queryNodes('%s', $candidates, $embedding)\nYIELD node AS e, score", EntityVectorIndex)
	}

	q := fmt.Sprintf(`%s
WITH e, score
WHERE score >= $min_score AND e.user_id = $user_id
RETURN e.uuid AS uuid, e.name AS name, e.type AS type, e.user_id AS user_id,
       e.created_at AS created_at, score
ORDER BY score DESC
LIMIT $limit`, head)
	return q, params
}

// TraversalQuery returns the bounded-depth walk from seed entities to the
// statements reachable through subject, predicate and object relationships.
func (qb *QueryBuilder) TraversalQuery(seedUUIDs []string, depth int, filter types.StatementFilter, limit int) (string, map[string]any) {
	params := map[string]any{
		"seed_uuids": seedUUIDs,
		"limit":      int64(limit),
	}
	depth = ClampDepth(depth)

	var walk string
	switch qb.provider {
	case GraphProviderLadybug:
		walk = fmt.Sprintf(`MATCH (seed:Entity)-[r:HAS_SUBJECT|HAS_PREDICATE|HAS_OBJECT*1..%d]-(s:Statement)
WHERE seed.uuid = seed_uuid
WITH s, min(length(r)) AS hops`, depth)
	default:
		walk = fmt.Sprintf(`MATCH (seed:Entity {uuid: seed_uuid})
MATCH path = (seed)-[:HAS_SUBJECT|HAS_PREDICATE|HAS_OBJECT*1..%d]-(s:Statement)
WITH s, min(length(path)) AS hops`, depth)
	}

	q := fmt.Sprintf(`UNWIND $seed_uuids AS seed_uuid
%s
WITH s, hops, null AS score
WHERE %s%s
ORDER BY hops ASC, valid_at DESC
LIMIT $limit`, walk, qb.filterClause(filter, params), statementProjection)
	return q, params
}

// EpisodesForStatementsQuery resolves episodes joined to statements by provenance.
func (qb *QueryBuilder) EpisodesForStatementsQuery(userID string, statementUUIDs []string) (string, map[string]any) {
	params := map[string]any{
		"user_id": userID,
		"uuids":   statementUUIDs,
	}
	q := `MATCH (ep:Episode)-[:HAS_PROVENANCE]->(s:Statement)
WHERE s.uuid IN $uuids AND ep.user_id = $user_id
RETURN ep.uuid AS uuid, ep.content AS content, ep.created_at AS created_at,
       collect(DISTINCT s.uuid) AS statement_uuids`
	return q, params
}

// IncrementRecallQueries returns one update per recallable label.
func (qb *QueryBuilder) IncrementRecallQueries(userID string, uuids []string) ([]string, map[string]any) {
	params := map[string]any{
		"user_id": userID,
		"uuids":   uuids,
	}
	queries := make([]string, 0, 2)
	for _, label := range []string{"Statement", "Episode"} {
		queries = append(queries, fmt.Sprintf(`MATCH (n:%s)
WHERE n.uuid IN $uuids AND n.user_id = $user_id
SET n.recall_count = coalesce(n.recall_count, 0) + 1`, label))
	}
	return queries, params
}

// IndexQueries returns the statements that create the retrieval indexes.
func (qb *QueryBuilder) IndexQueries(dimensions int) []string {
	switch qb.provider {
	case GraphProviderLadybug:
		return []string{
			fmt.Sprintf("CALL CREATE_FTS_INDEX('Statement', '%s', ['fact'])", ladybugStatementFTSIndex),
		}
	default:
		return []string{
			"CREATE INDEX statement_uuid IF NOT EXISTS FOR (n:Statement) ON (n.uuid)",
			"CREATE INDEX statement_user_id IF NOT EXISTS FOR (n:Statement) ON (n.user_id)",
			"CREATE INDEX statement_valid_at IF NOT EXISTS FOR (n:Statement) ON (n.valid_at)",
			"CREATE INDEX entity_uuid IF NOT EXISTS FOR (n:Entity) ON (n.uuid)",
			"CREATE INDEX episode_uuid IF NOT EXISTS FOR (n:Episode) ON (n.uuid)",
			fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:Statement) ON EACH [n.fact]", StatementFulltextIndex),
			fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:Statement) ON (n.fact_embedding) OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}", StatementVectorIndex, dimensions),
			fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:Entity) ON (n.name_embedding) OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}", EntityVectorIndex, dimensions),
		}
	}
}

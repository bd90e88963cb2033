package driver

import (
	"github.com/soundprediction/recall/pkg/types"
)

// statementFromRow builds a Statement from a projected row. Rows without a
// uuid are rejected.
func statementFromRow(row map[string]any) (*types.Statement, error) {
	uuid, err := MustString(row["uuid"], "uuid")
	if err != nil {
		return nil, err
	}
	fact, _ := AsString(row["fact"])

	s := &types.Statement{
		Uuid:       uuid,
		Fact:       fact,
		Attributes: DecodeAttributes(row["attributes"]),
	}
	s.UserID, _ = AsString(row["user_id"])
	s.SpaceIDs, _ = AsStringSlice(row["space_ids"])
	s.FactEmbedding, _ = AsFloat32Slice(row["fact_embedding"])
	s.Subject, _ = AsString(row["subject"])
	s.SubjectType, _ = AsString(row["subject_type"])
	s.Predicate, _ = AsString(row["predicate"])
	s.Object, _ = AsString(row["object"])
	s.ObjectType, _ = AsString(row["object_type"])
	s.RecallCount, _ = AsInt64(row["recall_count"])
	s.ProvenanceCount, _ = AsInt64(row["provenance_count"])
	s.ValidAt, _ = AsTime(row["valid_at"])
	s.CreatedAt, _ = AsTime(row["created_at"])
	s.InvalidAt = AsTimePtr(row["invalid_at"])

	if raw, ok := row["score"]; ok && raw != nil {
		score := ToFloat(raw)
		s.Score = &score
	}
	if hops, ok := AsInt64(row["hops"]); ok {
		s.Hops = int(hops)
	}
	return s, nil
}

func statementsFromRows(rows []map[string]any) ([]*types.Statement, error) {
	out := make([]*types.Statement, 0, len(rows))
	for _, row := range rows {
		s, err := statementFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func entitiesFromRows(rows []map[string]any) ([]*types.Entity, error) {
	out := make([]*types.Entity, 0, len(rows))
	for _, row := range rows {
		uuid, err := MustString(row["uuid"], "uuid")
		if err != nil {
			return nil, err
		}
		e := &types.Entity{Uuid: uuid, Score: ToFloat(row["score"])}
		e.Name, _ = AsString(row["name"])
		e.Type, _ = AsString(row["type"])
		e.UserID, _ = AsString(row["user_id"])
		e.CreatedAt, _ = AsTime(row["created_at"])
		out = append(out, e)
	}
	return out, nil
}

func episodesFromRows(rows []map[string]any) ([]*types.Episode, error) {
	out := make([]*types.Episode, 0, len(rows))
	for _, row := range rows {
		uuid, err := MustString(row["uuid"], "uuid")
		if err != nil {
			return nil, err
		}
		ep := &types.Episode{Uuid: uuid}
		ep.Content, _ = AsString(row["content"])
		ep.CreatedAt, _ = AsTime(row["created_at"])
		ep.StatementUUIDs, _ = AsStringSlice(row["statement_uuids"])
		out = append(out, ep)
	}
	return out, nil
}

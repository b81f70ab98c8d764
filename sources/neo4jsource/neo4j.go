// sources/neo4jsource/neo4j.go

// Package neo4jsource resolves batched membership checks from Neo4j: one
// UNWIND read per batch instead of one MATCH per checked pair.
package neo4jsource

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	logger "github.com/prosapient/datacop/logging"
)

// Pair is the shape membership inputs must expose: the actor and the
// organization being checked. Satisfied by pdp.MemberKey without an import.
type Pair interface {
	PairIDs() (actorID, orgID string)
}

// MembershipSource answers "is this user an active member of this
// organization" for whole batches of pairs at once.
type MembershipSource struct {
	driver neo4j.Driver
}

func NewMembershipSource(driver neo4j.Driver) *MembershipSource {
	return &MembershipSource{driver: driver}
}

// BatchLoad resolves all pairs of one batch with a single UNWIND query.
// Pairs not returned by the query resolve to false.
func (s *MembershipSource) BatchLoad(ctx context.Context, batchKey interface{}, inputs []interface{}) (map[interface{}]interface{}, error) {
	pairs := make([]map[string]interface{}, 0, len(inputs))
	byKey := make(map[string]interface{}, len(inputs))
	for _, input := range inputs {
		pair, ok := input.(Pair)
		if !ok {
			return nil, fmt.Errorf("membership source cannot resolve input %T", input)
		}
		actorID, orgID := pair.PairIDs()
		pairs = append(pairs, map[string]interface{}{
			"actorId": actorID,
			"orgId":   orgID,
		})
		byKey[actorID+"|"+orgID] = input
	}

	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        UNWIND $pairs AS pair
        MATCH (u:User {id: pair.actorId})-[m:MEMBER_OF]->(o:Organization {id: pair.orgId})
        WHERE coalesce(m.active, true)
        RETURN pair.actorId AS actorId, pair.orgId AS orgId
        `
		records, err := transaction.Run(query, map[string]interface{}{"pairs": pairs})
		if err != nil {
			return nil, err
		}

		members := make([]string, 0, len(pairs))
		for records.Next() {
			values := records.Record().Values
			members = append(members, fmt.Sprintf("%v|%v", values[0], values[1]))
		}
		return members, records.Err()
	})
	if err != nil {
		logger.Error("Failed to resolve membership batch", zap.Error(err))
		return nil, fmt.Errorf("failed to batch-load memberships: %w", err)
	}

	out := make(map[interface{}]interface{}, len(inputs))
	for _, input := range inputs {
		out[input] = false
	}
	for _, key := range result.([]string) {
		if input, ok := byKey[key]; ok {
			out[input] = true
		}
	}

	logger.Debug("Resolved membership batch from Neo4j",
		zap.Any("batchKey", batchKey),
		zap.Int("pairs", len(pairs)))
	return out, nil
}

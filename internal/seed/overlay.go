// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package seed

import (
	"math/rand"
	"strings"

	"github.com/netSkope/ato-migration-tool/internal/store"
)

var (
	controlStatuses = []string{"Implemented", "Partially Implemented", "Planned", "Not Implemented"}
	maturityLevels  = []string{"Traditional", "Initial", "Advanced", "Optimal"}
)

// expandOverlay instantiates every control and activity template for each
// tenant with a status per environment of that tenant. Iteration order is
// fixed so one seed always yields the same documents.
func expandOverlay(d multiCloudData, rng *rand.Rand) (controls, activities []store.Document) {
	for _, tenant := range d.Tenants {
		tenantID, _ := tenant["tenantId"].(string)
		envs := environmentsOf(d.Environments, tenantID)

		for _, tmpl := range d.Controls {
			doc := clone(tmpl)
			ctrl, _ := tmpl["controlIdentifier"].(string)
			doc["id"] = tenantID + "-" + strings.ToLower(ctrl)
			doc["tenantId"] = tenantID
			doc["cloudProvider"] = tenant["cloudProvider"]

			statuses := make([]any, 0, len(envs))
			total := 0
			for _, env := range envs {
				compliance := rng.Intn(101)
				total += compliance
				statuses = append(statuses, map[string]any{
					"environment":       env,
					"status":            controlStatuses[rng.Intn(len(controlStatuses))],
					"compliancePercent": compliance,
				})
			}
			doc["environmentStatus"] = statuses
			doc["overallCompliance"] = average(total, len(envs))
			controls = append(controls, doc)
		}

		for _, tmpl := range d.Activities {
			doc := clone(tmpl)
			activity, _ := tmpl["activityId"].(string)
			doc["id"] = tenantID + "-zta-" + activity
			doc["tenantId"] = tenantID
			doc["cloudProvider"] = tenant["cloudProvider"]

			statuses := make([]any, 0, len(envs))
			for _, env := range envs {
				statuses = append(statuses, map[string]any{
					"environment":     env,
					"maturity":        maturityLevels[rng.Intn(len(maturityLevels))],
					"progressPercent": rng.Intn(101),
				})
			}
			doc["environmentStatus"] = statuses
			activities = append(activities, doc)
		}
	}
	return controls, activities
}

func environmentsOf(environments []store.Document, tenantID string) []string {
	var names []string
	for _, env := range environments {
		if env["tenantId"] == tenantID {
			if name, ok := env["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return names
}

func clone(doc store.Document) store.Document {
	out := make(store.Document, len(doc)+4)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func average(total, n int) int {
	if n == 0 {
		return 0
	}
	return total / n
}

// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package exporter

import (
	"time"

	"github.com/netSkope/ato-migration-tool/internal/subscription"
)

// ResourceGroup is an Azure resource group as exported.
type ResourceGroup struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Location          string            `json:"location"`
	ProvisioningState string            `json:"provisioningState,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
}

// Resource is a generic Azure resource as exported.
type Resource struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Kind          string            `json:"kind,omitempty"`
	Location      string            `json:"location"`
	ResourceGroup string            `json:"resourceGroup"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// ConnectionInfo holds the account keys. It is nil on a CosmosAccount when
// key retrieval failed.
type ConnectionInfo struct {
	PrimaryKey   string `json:"primaryKey,omitempty"`
	SecondaryKey string `json:"secondaryKey,omitempty"`
}

// CosmosAccount is a CosmosDB account found in a subscription.
type CosmosAccount struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ResourceGroup    string          `json:"resourceGroup"`
	Location         string          `json:"location,omitempty"`
	DocumentEndpoint string          `json:"documentEndpoint"`
	ConnectionInfo   *ConnectionInfo `json:"connectionInfo,omitempty"`
	KeyError         string          `json:"keyError,omitempty"`
}

// HasKeys reports whether the account can be used as an import source.
func (a CosmosAccount) HasKeys() bool {
	return a.ConnectionInfo != nil && a.ConnectionInfo.PrimaryKey != "" && a.DocumentEndpoint != ""
}

// SecurityAssessment is a Defender for Cloud assessment result.
type SecurityAssessment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
	Severity    string `json:"severity,omitempty"`
	ResourceID  string `json:"resourceId,omitempty"`
	Description string `json:"description,omitempty"`
}

// Summary is derived from the pulled data, never fetched.
type Summary struct {
	ResourceGroupCount      int            `json:"resourceGroupCount"`
	ResourceCount           int            `json:"resourceCount"`
	CosmosAccountCount      int            `json:"cosmosdbAccountCount"`
	SecurityAssessmentCount int            `json:"securityAssessmentCount"`
	ResourceTypes           map[string]int `json:"resourceTypes"`
}

// ExportResult is the outcome of exporting one subscription. Failures are
// carried as data: Success covers resource group and resource listing, the
// optional categories record their own error and default to empty slices.
type ExportResult struct {
	Subscription        subscription.Subscription `json:"subscription"`
	ExportedAt          time.Time                 `json:"exportedAt"`
	ResourceGroups      []ResourceGroup           `json:"resourceGroups"`
	Resources           []Resource                `json:"resources"`
	CosmosAccounts      []CosmosAccount           `json:"cosmosdbAccounts"`
	SecurityAssessments []SecurityAssessment      `json:"securityAssessments"`
	Summary             Summary                   `json:"summary"`
	Success             bool                      `json:"success"`
	Error               string                    `json:"error,omitempty"`
	CosmosError         string                    `json:"cosmosdbError,omitempty"`
	SecurityError       string                    `json:"securityError,omitempty"`
}

// AccountsWithKeys returns the accounts whose key retrieval succeeded, in order.
func (r ExportResult) AccountsWithKeys() []CosmosAccount {
	var accounts []CosmosAccount
	for _, a := range r.CosmosAccounts {
		if a.HasKeys() {
			accounts = append(accounts, a)
		}
	}
	return accounts
}

// Package azuredevops provides a client for the Azure DevOps work item
// tracking REST API.
//
// The client authenticates with a personal access token, runs WIQL queries,
// reads work items in batches and creates or updates them with JSON Patch
// documents. [ToEntities] converts work items into [hierarchy.Entity]
// records using the System.Parent field.
package azuredevops

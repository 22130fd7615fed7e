// Package productboard provides a client for the ProductBoard public API.
//
// The client lists products, components, features and initiatives, follows
// cursor pagination through links.next, and converts the result into
// [hierarchy.Entity] records so the planning hierarchy can be assembled with
// [hierarchy.Build].
//
// ProductBoard wraps most responses in a data envelope but not all of them,
// and a feature's parent is an object keyed by the parent's kind. Both are
// normalised here: list calls always yield slices, and [ParseParent] turns
// the parent object into an explicit [ParentRef].
package productboard

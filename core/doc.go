// Package core contains the continuation correlation engine: continuations,
// the registry that maps correlation ids to them, and the gateway that parks
// inbound connections until a reply or deadline resumes them. Transport,
// codec and channel adapters depend on this package; core must not depend on
// them.
package core

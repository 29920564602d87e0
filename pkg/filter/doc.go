/*
Package filter implements the predicate language shared by the SSL and
HTTP filters.

A filter is a list of clauses, each a dotted path into the event payload,
an operator, and a literal:

	response.status>=400
	request.path_prefix=/api
	data_type=read
	comm~python
	error exists

The list is conjunctive by default; a leading "any:" element makes it
disjunctive. Path components are dot-separated object keys; integer
components index arrays. A missing path makes equality and comparison
clauses false and "!=" clauses true.

Operators: = != ~ prefix suffix > >= < <= exists. The prefix and suffix
operators are written by appending _prefix or _suffix to the path before
"=". A clause beginning "expr:" escapes the closed grammar entirely and is
compiled once with expr-lang against the environment
{timestamp, source, pid, comm, data}:

	expr:data.status >= 400 && data.comm != "curl"

Every filter carries three atomic counters (total, filtered_out, passed),
read through Filter.Metrics and mirrored into Prometheus counters, which
the server exposes at /metrics. They are monotonic and reset only on
explicit request (Filter.ResetMetrics); the Prometheus mirror is never
reset.
*/
package filter

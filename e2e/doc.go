// Package e2e runs the blog app scenarios as a Ginkgo suite against a real
// browser:
//
//	go test -tags e2e ./e2e
//	BLOG_E2E_BASE_URLS=http://localhost:5173 go test -tags e2e ./e2e -ginkgo.label-filter=likes
package e2e

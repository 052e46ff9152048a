package domain

import "fmt"

// CompilationOptions mirrors the backend's compiler switches.
type CompilationOptions struct {
	ComputeNoLocationURLs bool `json:"computeNoLocationUrls"`
	FailOnWarnings        bool `json:"failOnWarnings"`
	FastCompilation       bool `json:"fastCompilation"`
	IncludeDilInQlo       bool `json:"includeDilInQlo"`
	LocalChecking         bool `json:"localChecking"`
	NoComputeGetURL       bool `json:"noComputeGetUrl"`
	NoComputeToString     bool `json:"noComputeToString"`
	ComputeDefaultStrings bool `json:"computeDefaultStrings"`
	EmitDebugInfo         bool `json:"emitDebugInfo"`
}

// ExtraOptions carries evaluation limits alongside a compile request.
type ExtraOptions struct {
	TimeoutSecs int `json:"timeoutSecs"`
}

// QueryToCheck names the query source to compile.
type QueryToCheck struct {
	QueryPath string `json:"queryPath"`
}

// QueryPackRef points at a query inside a query pack directory.
type QueryPackRef struct {
	PackDir   string `json:"packDir"`
	QueryPath string `json:"queryPath"`
}

// CompileTarget discriminates between a raw query body and a query-pack
// reference. Exactly one variant is populated.
type CompileTarget struct {
	Query     *QueryToCheck `json:"query,omitempty"`
	QueryPack *QueryPackRef `json:"queryPack,omitempty"`
}

// Validate checks that exactly one target variant is set.
func (t CompileTarget) Validate() error {
	if (t.Query == nil) == (t.QueryPack == nil) {
		return fmt.Errorf("compile target must set exactly one of query or queryPack")
	}
	return nil
}

// CompileRequest is the payload of one compilation exchange.
type CompileRequest struct {
	CompilationOptions CompilationOptions `json:"compilationOptions"`
	ExtraOptions       ExtraOptions       `json:"extraOptions"`
	QueryToCheck       string             `json:"queryToCheck"`
	ResultPath         string             `json:"resultPath"`
	Target             CompileTarget      `json:"target"`
}

// RunRequest asks the backend to evaluate a compiled query against a
// database, writing raw results to OutputPath.
type RunRequest struct {
	QloPath     string `json:"qloPath"`
	DatasetDir  string `json:"db"`
	OutputPath  string `json:"outputPath"`
	TimeoutSecs int    `json:"timeoutSecs"`
}

package apply

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/mysql"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // required to register TiDB parser driver implementations

	"gridedit/internal/dialect"
	"gridedit/internal/sqlgen"
)

// StatementAnalysis contains the results of analyzing one synthesized statement.
type StatementAnalysis struct {
	StatementType string
	HasWhere      bool
	IsDestructive bool
	// Problem is set when the statement must not run.
	Problem string
}

// StatementAnalyzer uses TiDB's AST parser to check that every synthesized
// statement is exactly one row-level INSERT, UPDATE or DELETE. Statements are
// parsed in their MySQL-bound form: ? markers and ANSI quoted identifiers.
type StatementAnalyzer struct {
	parser *parser.Parser
}

// NewStatementAnalyzer creates a new AST-based statement analyzer.
func NewStatementAnalyzer() *StatementAnalyzer {
	p := parser.New()
	p.SetSQLMode(mysql.ModeANSIQuotes)
	return &StatementAnalyzer{parser: p}
}

// AnalyzeStatement parses a single neutral statement and returns analysis results.
func (a *StatementAnalyzer) AnalyzeStatement(statement string, values []any) *StatementAnalysis {
	bound, _ := dialect.RebindQuestion(dialect.ExpandDefaultValues(statement), values)

	stmtNodes, _, err := a.parser.Parse(bound, "", "")
	if err != nil {
		return &StatementAnalysis{StatementType: "UNPARSEABLE", Problem: fmt.Sprintf("statement does not parse: %v", err)}
	}

	switch len(stmtNodes) {
	case 0:
		return &StatementAnalysis{StatementType: "EMPTY", Problem: "statement is empty"}
	case 1:
	default:
		return &StatementAnalysis{StatementType: "MULTI", Problem: fmt.Sprintf("expected one statement, found %d", len(stmtNodes))}
	}

	return a.analyzeNode(stmtNodes[0])
}

// AnalyzeStatements analyzes a batch and returns a PreflightResult.
func (a *StatementAnalyzer) AnalyzeStatements(statements []sqlgen.Statement) *PreflightResult {
	result := &PreflightResult{}

	for i, st := range statements {
		analysis := a.AnalyzeStatement(st.SQL, st.Values)
		if analysis.Problem != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("statement %d (change %d): %s", i+1, st.ChangeIndex, analysis.Problem))
			continue
		}
		if analysis.IsDestructive {
			result.Warnings = append(result.Warnings, Warning{
				Level:   WarnDanger,
				Message: "DELETE will remove rows from the table",
				SQL:     truncateSQL(st.SQL),
			})
		}
	}

	return result
}

func (a *StatementAnalyzer) analyzeNode(node ast.StmtNode) *StatementAnalysis {
	analysis := &StatementAnalysis{}

	switch stmt := node.(type) {
	case *ast.InsertStmt:
		analysis.StatementType = "INSERT"
		if stmt.Select != nil {
			analysis.Problem = "INSERT ... SELECT is not a row edit"
		}
	case *ast.UpdateStmt:
		analysis.StatementType = "UPDATE"
		analysis.HasWhere = stmt.Where != nil
	case *ast.DeleteStmt:
		analysis.StatementType = "DELETE"
		analysis.HasWhere = stmt.Where != nil
		analysis.IsDestructive = true
	default:
		analysis.StatementType = strings.ToUpper(strings.TrimPrefix(fmt.Sprintf("%T", node), "*ast."))
		analysis.Problem = "only INSERT, UPDATE and DELETE statements are allowed"
		return analysis
	}

	if (analysis.StatementType == "UPDATE" || analysis.StatementType == "DELETE") && !analysis.HasWhere {
		analysis.Problem = analysis.StatementType + " without WHERE would touch every row"
	}
	return analysis
}

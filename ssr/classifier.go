// Package ssr implements the server-side subset of handler execution:
// static classification of handler code by side-effect profile, a
// restricted executor that records side effects instead of performing
// them, and client-side hydration that replays the recorded state.
package ssr

import (
	"sort"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// Classification is the side-effect profile of a handler.
type Classification string

const (
	// ClassSSRSafe marks a pure read: safe to execute on the server and
	// use the result directly in rendered output.
	ClassSSRSafe Classification = "ssr-safe"
	// ClassSSRPartial marks a handler that may run on the server with
	// its side effects recorded for client replay.
	ClassSSRPartial Classification = "ssr-partial"
	// ClassClientOnly marks a handler that must not run on the server.
	ClassClientOnly Classification = "client-only"
)

// Report is the result of classifying one handler.
type Report struct {
	Classification Classification `json:"classification"`
	SideEffectAPIs []string       `json:"side_effect_apis"`
	Reason         string         `json:"reason,omitempty"`
}

// clientOnlyAPIs force client-only classification: anything that talks
// to the backend asynchronously.
var clientOnlyAPIs = map[string]struct{}{
	"InvokeFunction": {},
}

// sideEffectAPIs yield ssr-partial: state mutations, navigation, and UI
// notifications that can be deferred and replayed.
var sideEffectAPIs = map[string]struct{}{
	"SetVar":                {},
	"SetContextVar":         {},
	"NavigateToUrl":         {},
	"NavigateToHash":        {},
	"NavigateToPage":        {},
	"ShowToast":             {},
	"ShowInfoToast":         {},
	"ShowSuccessToast":      {},
	"ShowWarningToast":      {},
	"ShowErrorToast":        {},
	"AddComponent":          {},
	"DeleteComponentAction": {},
	"updateName":            {},
	"updateInput":           {},
	"updateEvent":           {},
	"updateStyle":           {},
}

// methodAliases maps namespaced calling style to the flat API names, so
// Var.set(...) classifies identically to SetVar(...).
var methodAliases = map[string]string{
	"Var.set":          "SetVar",
	"Var.get":          "GetVar",
	"Ctx.set":          "SetContextVar",
	"Ctx.get":          "GetContextVar",
	"Nav.toUrl":        "NavigateToUrl",
	"Nav.toHash":       "NavigateToHash",
	"Nav.toPage":       "NavigateToPage",
	"Toast.show":       "ShowToast",
	"Toast.info":       "ShowInfoToast",
	"Toast.success":    "ShowSuccessToast",
	"Toast.warning":    "ShowWarningToast",
	"Toast.error":      "ShowErrorToast",
	"Fn.invoke":        "InvokeFunction",
	"Comp.add":         "AddComponent",
	"Comp.delete":      "DeleteComponentAction",
	"Comp.updateName":  "updateName",
	"Comp.updateInput": "updateInput",
	"Comp.updateEvent": "updateEvent",
	"Comp.updateStyle": "updateStyle",
}

// ClassifyHandler statically classifies a handler snippet by walking
// every call expression and await expression in its AST. Snippets are
// parsed as function bodies, the same way the compiler wraps them, so a
// bare return classifies instead of failing to parse. A parse failure
// classifies as ssr-safe by convention; the companion validator rejects
// genuinely malformed code before it is persisted.
func ClassifyHandler(code string) Report {
	program, err := parser.ParseFile(nil, "handler", "(function() {\n"+code+"\n})()", 0)
	if err != nil && strings.Contains(code, "await") {
		// Top-level await only parses inside an async wrapper.
		program, err = parser.ParseFile(nil, "handler", "(async function() {\n"+code+"\n})()", 0)
	}
	if err != nil {
		return Report{
			Classification: ClassSSRSafe,
			SideEffectAPIs: []string{},
			Reason:         "parse failure, deferred to validator",
		}
	}

	s := &scanner{sideEffects: make(map[string]struct{})}
	for _, stmt := range program.Body {
		s.statement(stmt)
	}

	if s.hasAwait {
		return Report{
			Classification: ClassClientOnly,
			SideEffectAPIs: s.sorted(),
			Reason:         "contains await",
		}
	}
	if s.clientOnly != "" {
		return Report{
			Classification: ClassClientOnly,
			SideEffectAPIs: s.sorted(),
			Reason:         "calls " + s.clientOnly,
		}
	}
	if len(s.sideEffects) > 0 {
		return Report{Classification: ClassSSRPartial, SideEffectAPIs: s.sorted()}
	}
	return Report{Classification: ClassSSRSafe, SideEffectAPIs: []string{}}
}

// scanner is a recursive traversal over goja's AST node types; the ast
// package exports only the nodes themselves, so descent into children
// is spelled out per kind. Only call expressions and await expressions
// affect classification, everything else is walked through.
type scanner struct {
	sideEffects map[string]struct{}
	clientOnly  string
	hasAwait    bool
}

func (s *scanner) statement(stmt ast.Statement) {
	switch st := stmt.(type) {
	case nil:
	case *ast.BlockStatement:
		for _, inner := range st.List {
			s.statement(inner)
		}
	case *ast.ExpressionStatement:
		s.expression(st.Expression)
	case *ast.IfStatement:
		s.expression(st.Test)
		s.statement(st.Consequent)
		s.statement(st.Alternate)
	case *ast.ReturnStatement:
		s.expression(st.Argument)
	case *ast.ThrowStatement:
		s.expression(st.Argument)
	case *ast.VariableStatement:
		s.bindings(st.List)
	case *ast.LexicalDeclaration:
		s.bindings(st.List)
	case *ast.ForStatement:
		s.forInitializer(st.Initializer)
		s.expression(st.Test)
		s.expression(st.Update)
		s.statement(st.Body)
	case *ast.ForInStatement:
		s.forInto(st.Into)
		s.expression(st.Source)
		s.statement(st.Body)
	case *ast.ForOfStatement:
		s.forInto(st.Into)
		s.expression(st.Source)
		s.statement(st.Body)
	case *ast.WhileStatement:
		s.expression(st.Test)
		s.statement(st.Body)
	case *ast.DoWhileStatement:
		s.statement(st.Body)
		s.expression(st.Test)
	case *ast.SwitchStatement:
		s.expression(st.Discriminant)
		for _, c := range st.Body {
			s.expression(c.Test)
			for _, inner := range c.Consequent {
				s.statement(inner)
			}
		}
	case *ast.TryStatement:
		s.statement(st.Body)
		if st.Catch != nil {
			s.statement(st.Catch.Body)
		}
		if st.Finally != nil {
			s.statement(st.Finally)
		}
	case *ast.LabelledStatement:
		s.statement(st.Statement)
	case *ast.WithStatement:
		s.expression(st.Object)
		s.statement(st.Body)
	case *ast.FunctionDeclaration:
		s.expression(st.Function)
	case *ast.ClassDeclaration:
		s.expression(st.Class)
	}
}

func (s *scanner) expression(expr ast.Expression) {
	switch e := expr.(type) {
	case nil:
	case *ast.AwaitExpression:
		s.hasAwait = true
		s.expression(e.Argument)
	case *ast.CallExpression:
		name := calleeName(e.Callee)
		if mapped, ok := methodAliases[name]; ok {
			name = mapped
		}
		if _, ok := clientOnlyAPIs[name]; ok && s.clientOnly == "" {
			s.clientOnly = name
		}
		if _, ok := sideEffectAPIs[name]; ok {
			s.sideEffects[name] = struct{}{}
		}
		s.expression(e.Callee)
		s.expressions(e.ArgumentList)
	case *ast.NewExpression:
		s.expression(e.Callee)
		s.expressions(e.ArgumentList)
	case *ast.AssignExpression:
		s.expression(e.Left)
		s.expression(e.Right)
	case *ast.BinaryExpression:
		s.expression(e.Left)
		s.expression(e.Right)
	case *ast.UnaryExpression:
		s.expression(e.Operand)
	case *ast.ConditionalExpression:
		s.expression(e.Test)
		s.expression(e.Consequent)
		s.expression(e.Alternate)
	case *ast.DotExpression:
		s.expression(e.Left)
	case *ast.PrivateDotExpression:
		s.expression(e.Left)
	case *ast.BracketExpression:
		s.expression(e.Left)
		s.expression(e.Member)
	case *ast.SequenceExpression:
		s.expressions(e.Sequence)
	case *ast.ArrayLiteral:
		s.expressions(e.Value)
	case *ast.ObjectLiteral:
		for _, p := range e.Value {
			s.property(p)
		}
	case *ast.SpreadElement:
		s.expression(e.Expression)
	case *ast.TemplateLiteral:
		s.expression(e.Tag)
		s.expressions(e.Expressions)
	case *ast.YieldExpression:
		s.expression(e.Argument)
	case *ast.OptionalChain:
		s.expression(e.Expression)
	case *ast.Optional:
		s.expression(e.Expression)
	case *ast.FunctionLiteral:
		s.functionLiteral(e)
	case *ast.ArrowFunctionLiteral:
		s.parameters(e.ParameterList)
		switch body := e.Body.(type) {
		case *ast.BlockStatement:
			s.statement(body)
		case *ast.ExpressionBody:
			s.expression(body.Expression)
		}
	case *ast.ClassLiteral:
		s.expression(e.SuperClass)
		for _, member := range e.Body {
			s.classElement(member)
		}
	case *ast.Binding:
		s.expression(e.Target)
		s.expression(e.Initializer)
	case *ast.ObjectPattern:
		for _, p := range e.Properties {
			s.property(p)
		}
		s.expression(e.Rest)
	case *ast.ArrayPattern:
		s.expressions(e.Elements)
		s.expression(e.Rest)
	}
}

func (s *scanner) expressions(list []ast.Expression) {
	for _, expr := range list {
		s.expression(expr)
	}
}

func (s *scanner) functionLiteral(fn *ast.FunctionLiteral) {
	s.parameters(fn.ParameterList)
	if fn.Body != nil {
		s.statement(fn.Body)
	}
}

func (s *scanner) parameters(list *ast.ParameterList) {
	if list == nil {
		return
	}
	s.bindings(list.List)
	s.expression(list.Rest)
}

func (s *scanner) bindings(list []*ast.Binding) {
	for _, b := range list {
		if b == nil {
			continue
		}
		s.expression(b.Target)
		s.expression(b.Initializer)
	}
}

func (s *scanner) property(p ast.Property) {
	switch prop := p.(type) {
	case *ast.PropertyShort:
		s.expression(prop.Initializer)
	case *ast.PropertyKeyed:
		s.expression(prop.Key)
		s.expression(prop.Value)
	case *ast.SpreadElement:
		s.expression(prop.Expression)
	}
}

func (s *scanner) classElement(el ast.ClassElement) {
	switch member := el.(type) {
	case *ast.FieldDefinition:
		s.expression(member.Key)
		s.expression(member.Initializer)
	case *ast.MethodDefinition:
		s.expression(member.Key)
		if member.Body != nil {
			s.functionLiteral(member.Body)
		}
	case *ast.ClassStaticBlock:
		if member.Block != nil {
			s.statement(member.Block)
		}
	}
}

func (s *scanner) forInitializer(init ast.ForLoopInitializer) {
	switch loop := init.(type) {
	case nil:
	case *ast.ForLoopInitializerExpression:
		s.expression(loop.Expression)
	case *ast.ForLoopInitializerVarDeclList:
		s.bindings(loop.List)
	case *ast.ForLoopInitializerLexicalDecl:
		s.bindings(loop.LexicalDeclaration.List)
	}
}

func (s *scanner) forInto(into ast.ForInto) {
	switch target := into.(type) {
	case nil:
	case *ast.ForIntoVar:
		if target.Binding != nil {
			s.expression(target.Binding.Target)
			s.expression(target.Binding.Initializer)
		}
	case *ast.ForDeclaration:
		s.expression(target.Target)
	case *ast.ForIntoExpression:
		s.expression(target.Expression)
	}
}

func (s *scanner) sorted() []string {
	out := make([]string, 0, len(s.sideEffects))
	for name := range s.sideEffects {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// calleeName resolves an identifier or a one-level dotted expression to
// the name the classifier tables are keyed by. Deeper expressions
// return "" and classify as unknown calls.
func calleeName(callee ast.Expression) string {
	switch expr := callee.(type) {
	case *ast.Identifier:
		return expr.Name.String()
	case *ast.DotExpression:
		if left, ok := expr.Left.(*ast.Identifier); ok {
			return left.Name.String() + "." + expr.Identifier.Name.String()
		}
	}
	return ""
}

package elaborate

import (
	"fmt"
	"strings"

	"github.com/xplshn/svrtl/pkg/ast"
	"github.com/xplshn/svrtl/pkg/config"
	"github.com/xplshn/svrtl/pkg/rtlil"
	"github.com/xplshn/svrtl/pkg/util"
)

// fmtArgKind classifies one $display argument before format parsing.
type fmtArgKind int

const (
	fmtArgString fmtArgKind = iota
	fmtArgInteger
	fmtArgTime
)

type fmtArg struct {
	kind     fmtArgKind
	str      string
	sig      rtlil.SigSpec
	signed   bool
	realtime bool
}

// lowerDisplay emits a print cell for a $display call. The trigger comes
// from the process's sync rules; the enable is 1 only when control
// reaches the current branch; priority decreases per call so several
// prints keep program order.
func (v *ProceduralVisitor) lowerDisplay(stmt *ast.ExpressionStatement, call *ast.CallExpr) {
	if !v.ctx.Cfg.IsFeatureEnabled(config.FeatPrintCells) {
		return
	}

	cell := v.mod.AddCell("", "print")
	v.ctx.transferAttrs(stmt, cell)
	v.setCellTrigger(cell, stmt.Source())
	v.printPriority--
	cell.SetParamInt("PRIORITY", v.printPriority)

	var args []fmtArg
	for _, arg := range call.Arguments {
		switch a := arg.(type) {
		case *ast.StringLiteral:
			args = append(args, fmtArg{kind: fmtArgString, str: a.Value})
		case *ast.CallExpr:
			if a.System && a.Name == "$time" {
				args = append(args, fmtArg{kind: fmtArgTime})
				continue
			}
			if a.System && a.Name == "$realtime" {
				args = append(args, fmtArg{kind: fmtArgTime, realtime: true})
				continue
			}
			args = append(args, v.integerFmtArg(arg))
		default:
			args = append(args, v.integerFmtArg(arg))
		}
	}

	format, sigs, err := parseDisplayFormat(args)
	if err != nil {
		util.Error(v.ctx.sm(), stmt.Source(), "$display: %v", err)
	}
	format += "\n"

	cell.SetParam("FORMAT", stringConst(format))
	var argsPort rtlil.SigSpec
	for _, sig := range sigs {
		argsPort = argsPort.Append(sig)
	}
	cell.SetPort("ARGS", argsPort)
	cell.SetParamInt("ARGS_WIDTH", argsPort.Size())
}

func (v *ProceduralVisitor) integerFmtArg(arg ast.Expression) fmtArg {
	return fmtArg{
		kind:   fmtArgInteger,
		sig:    v.ev.EvaluateRHS(arg, v.pctx),
		signed: arg.Type().IsSigned(),
	}
}

// parseDisplayFormat renders a normalized format template. $display's
// default base is decimal: bare integer arguments print as %d separated
// by spaces, and string arguments act as format strings consuming the
// integer arguments that follow them.
func parseDisplayFormat(args []fmtArg) (string, []rtlil.SigSpec, error) {
	var out strings.Builder
	var sigs []rtlil.SigSpec

	// Queue of non-string arguments available to specifiers.
	var pending []fmtArg
	consumed := 0
	takeArg := func() (fmtArg, error) {
		if consumed >= len(pending) {
			return fmtArg{}, fmt.Errorf("not enough arguments for format specifiers")
		}
		arg := pending[consumed]
		consumed++
		return arg, nil
	}

	var formats []string
	for _, arg := range args {
		if arg.kind == fmtArgString {
			formats = append(formats, arg.str)
		} else {
			pending = append(pending, arg)
		}
	}

	if len(formats) == 0 {
		// No format string: print remaining args in the default base,
		// space separated.
		for i, arg := range pending {
			if i > 0 {
				out.WriteByte(' ')
			}
			sigs = appendSpec(&out, sigs, arg, 'd')
		}
		return out.String(), sigs, nil
	}

	for _, format := range formats {
		for i := 0; i < len(format); {
			c := format[i]
			if c != '%' {
				out.WriteByte(c)
				i++
				continue
			}
			if i+1 < len(format) && format[i+1] == '%' {
				out.WriteString("%%")
				i += 2
				continue
			}
			i++
			// Skip width digits.
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
			if i >= len(format) {
				return "", nil, fmt.Errorf("trailing %% in format string")
			}
			verb := format[i]
			i++
			switch verb {
			case 'd', 'D', 'b', 'B', 'h', 'H', 'x', 'X', 'o', 'O', 't', 'T':
				arg, err := takeArg()
				if err != nil {
					return "", nil, err
				}
				sigs = appendSpec(&out, sigs, arg, normalizeVerb(verb))
			case 'c', 's', 'S':
				arg, err := takeArg()
				if err != nil {
					return "", nil, err
				}
				sigs = appendSpec(&out, sigs, arg, 's')
			case 'm':
				out.WriteString("%m")
			default:
				return "", nil, fmt.Errorf("unsupported format specifier %%%c", verb)
			}
		}
	}

	// Arguments beyond the specifiers print in the default base.
	for consumed < len(pending) {
		arg, _ := takeArg()
		out.WriteByte(' ')
		sigs = appendSpec(&out, sigs, arg, 'd')
	}
	return out.String(), sigs, nil
}

func normalizeVerb(verb byte) byte {
	switch verb {
	case 'D':
		return 'd'
	case 'B':
		return 'b'
	case 'h', 'H', 'X':
		return 'x'
	case 'O':
		return 'o'
	case 'T':
		return 't'
	}
	return verb
}

// appendSpec writes the placeholder for one argument and collects its
// signal. Time arguments reference the simulation time pseudo-signal and
// contribute no ARGS bits.
func appendSpec(out *strings.Builder, sigs []rtlil.SigSpec, arg fmtArg, verb byte) []rtlil.SigSpec {
	if arg.kind == fmtArgTime {
		out.WriteString("{time}")
		return sigs
	}
	sign := "u"
	if arg.signed {
		sign = "s"
	}
	fmt.Fprintf(out, "{%d:%c%s}", arg.sig.Size(), verb, sign)
	return append(sigs, arg.sig)
}

// stringConst packs a string into a string-flagged constant, first
// character most significant.
func stringConst(s string) rtlil.Const {
	c := rtlil.Const{Flags: rtlil.ConstFlagString}
	for i := len(s) - 1; i >= 0; i-- {
		ch := s[i]
		for b := 0; b < 8; b++ {
			if (ch>>uint(b))&1 != 0 {
				c.Bits = append(c.Bits, rtlil.S1)
			} else {
				c.Bits = append(c.Bits, rtlil.S0)
			}
		}
	}
	return c
}

package main

import (
	"fmt"
	"strconv"

	"github.com/bioimg-go/bioimg-runtime/modeliface"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			}
			return s.Align(alignment)
		})
}

// tensorsTable lists each tensor with its test tensor shape and size in memory.
func tensorsTable(mi *modeliface.ModelInterface) string {
	table := newPlainTable(lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Right)
	table.Headers("Kind", "Tensor", "Test Tensor", "Elements", "Bytes")
	var totalMemory uint64
	add := func(kind, id string, testTensor modeliface.SampleArray) {
		shape := testTensor.Shape()
		totalMemory += uint64(shape.Memory())
		table.Row(kind, id, shape.String(), humanize.Comma(int64(shape.Size())), humanize.Bytes(uint64(shape.Memory())))
	}
	for _, slot := range mi.Inputs() {
		add("input", string(slot.Descr.Id), slot.TestTensor)
	}
	for _, slot := range mi.Outputs() {
		add("output", string(slot.Descr.Id), slot.TestTensor)
	}
	table.Row("", "total", "", "", humanize.Bytes(totalMemory))
	return table.Render()
}

// axesTable lists every axis with its resolved size and, for references, where the size comes from.
func axesTable(rows []modeliface.AxisReportRow) string {
	table := newPlainTable(lipgloss.Left, lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Left)
	table.Headers("Tensor", "#", "Axis", "Type", "Size", "Extent", "From")
	for _, row := range rows {
		size := ""
		switch row.SizeKind {
		case "fixed":
			size = strconv.FormatInt(row.Min, 10)
		case "parameterized":
			size = fmt.Sprintf("%d+%dn", row.Min, row.Step)
		}
		from := ""
		if row.Root != "" {
			from = row.Root
			if row.Offset != 0 {
				from = fmt.Sprintf("%s +%d", row.Root, row.Offset)
			}
			from = fmt.Sprintf("%s (%d hops)", from, row.Hops)
		}
		table.Row(row.TensorId, strconv.Itoa(int(row.AxisIndex)), row.AxisId, row.AxisType, size,
			humanize.Comma(row.TestExtent), from)
	}
	return table.Render()
}

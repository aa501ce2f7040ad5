package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/cnc-service/internal/model"
)

const (
	summarySheet = "Summary"
	ordersSheet  = "Work orders"
	maxSheetName = 31
)

var orderHeaders = []string{
	"ID",
	"Title",
	"Type",
	"Status",
	"Priority",
	"Client",
	"Machine",
	"Estimated date",
	"Estimated hours",
	"Technicians",
	"Created at",
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate writes a summary sheet, the full order list and one sheet per
// service type present in the report.
func (g *Generator) Generate(report model.WorkOrderReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, report)

	if _, err := file.NewSheet(ordersSheet); err != nil {
		return nil, err
	}
	g.writeOrders(file, ordersSheet, report.Orders)

	usedNames := map[string]struct{}{summarySheet: {}, ordersSheet: {}}
	for _, group := range groupByType(report.Orders) {
		sheetName := buildSheetName(typeLabel(group.orderType), usedNames)
		usedNames[sheetName] = struct{}{}
		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		g.writeOrders(file, sheetName, group.orders)
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report model.WorkOrderReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	set("A1", "Generated at")
	set("B1", formatDateTime(report.GeneratedAt))
	set("A2", "Work orders")
	set("B2", len(report.Orders))
	set("A4", "Open")
	set("B4", report.KPIs.Open)
	set("A5", "Upcoming (24h)")
	set("B5", report.KPIs.Upcoming)
	set("A6", "In progress")
	set("B6", report.KPIs.InProgress)
	set("A7", "Pending invoice")
	set("B7", report.KPIs.PendingInvoice)

	tableRow := 9
	set(fmt.Sprintf("A%d", tableRow), "Status")
	set(fmt.Sprintf("B%d", tableRow), "Count")
	for i, sc := range countByStatus(report.Orders) {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), string(sc.status))
		set(fmt.Sprintf("B%d", row), sc.count)
	}

	_ = file.SetColWidth(summarySheet, "A", "A", 24)
	_ = file.SetColWidth(summarySheet, "B", "B", 22)
}

func (g *Generator) writeOrders(file *excelize.File, sheet string, orders []model.WorkOrder) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	for i, header := range orderHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}
	for i, wo := range orders {
		row := i + 2
		set(fmt.Sprintf("A%d", row), wo.ID)
		set(fmt.Sprintf("B%d", row), wo.Title)
		set(fmt.Sprintf("C%d", row), string(wo.Type))
		set(fmt.Sprintf("D%d", row), string(wo.Status))
		set(fmt.Sprintf("E%d", row), string(wo.Priority))
		set(fmt.Sprintf("F%d", row), wo.ClientName)
		set(fmt.Sprintf("G%d", row), formatString(wo.MachineID))
		set(fmt.Sprintf("H%d", row), formatDatePtr(wo.EstimatedDate))
		set(fmt.Sprintf("I%d", row), formatFloat(wo.EstimatedDurationHours))
		set(fmt.Sprintf("J%d", row), strings.Join(wo.AssignedTechnicians, ", "))
		set(fmt.Sprintf("K%d", row), formatDateTime(wo.CreatedAt))
	}

	_ = file.SetColWidth(sheet, "A", "A", 12)
	_ = file.SetColWidth(sheet, "B", "B", 36)
	_ = file.SetColWidth(sheet, "C", "E", 20)
	_ = file.SetColWidth(sheet, "F", "G", 24)
	_ = file.SetColWidth(sheet, "H", "I", 16)
	_ = file.SetColWidth(sheet, "J", "J", 36)
	_ = file.SetColWidth(sheet, "K", "K", 20)
}

type typeGroup struct {
	orderType model.WorkOrderType
	orders    []model.WorkOrder
}

// groupByType keeps first-seen order of the types.
func groupByType(orders []model.WorkOrder) []typeGroup {
	index := make(map[model.WorkOrderType]int)
	var groups []typeGroup
	for _, wo := range orders {
		i, ok := index[wo.Type]
		if !ok {
			i = len(groups)
			index[wo.Type] = i
			groups = append(groups, typeGroup{orderType: wo.Type})
		}
		groups[i].orders = append(groups[i].orders, wo)
	}
	return groups
}

type statusCount struct {
	status model.WorkOrderStatus
	count  int
}

func countByStatus(orders []model.WorkOrder) []statusCount {
	statuses := []model.WorkOrderStatus{
		model.WorkOrderStatusPending,
		model.WorkOrderStatusAssigned,
		model.WorkOrderStatusInProgress,
		model.WorkOrderStatusDone,
		model.WorkOrderStatusArchived,
		model.WorkOrderStatusCancelled,
	}
	counts := make(map[model.WorkOrderStatus]int, len(statuses))
	for _, wo := range orders {
		counts[wo.Status]++
	}
	out := make([]statusCount, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, statusCount{status: st, count: counts[st]})
	}
	return out
}

func typeLabel(t model.WorkOrderType) string {
	label := strings.ReplaceAll(string(t), "_", " ")
	if label == "" {
		return "Other"
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func buildSheetName(name string, used map[string]struct{}) string {
	base := sanitizeSheetName(name)
	if len(base) > maxSheetName {
		base = base[:maxSheetName]
	}

	candidate := base
	counter := 2
	for {
		if _, exists := used[candidate]; !exists {
			return candidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > maxSheetName {
			trimmed = trimmed[:maxSheetName-len(suffix)]
		}
		candidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Sheet"
	}
	return value
}

func formatDatePtr(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *value)
}

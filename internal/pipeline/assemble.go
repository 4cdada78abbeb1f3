package pipeline

import (
	"fmt"
	"math"
	"strings"

	"hospital-kpi-pipeline/internal/model"
	"hospital-kpi-pipeline/pkg/utils"
)

// assembler turns one endpoint's normalized view into zero or more cards.
// Returning an empty slice means the payload carried no presentable data.
type assembler func(v View, res model.EndpointResult) []model.KpiCard

var assemblers = map[string]assembler{
	"mhpl0001": assembleRevisitRate,
	"mhpl0002": assemblePayroll,
	"mhpl0003": assembleGeographic,
	"mhpl0004": assemblePatientSpending,
	"mhpl0005": assembleConsultantRevenue,
	"mhpl0006": assembleInsuranceClaims,
	"mhpl0007": assembleBedOccupancy,
	"mhpl0008": assembleEmployeePerformance,
	"mhpl0009": assembleExpiredMedicine,
	"mhpl0010": assembleSalarySummary,
}

// placeholders are the cards the dashboard always shows, even when the
// backing endpoint failed or returned nothing. Single-endpoint runs skip
// them so a targeted fetch never reports a metric it did not compute.
var placeholders = map[string]model.KpiCard{
	"mhpl0001": {
		ID:         "patient-revisit-rate",
		EndpointID: "mhpl0001",
		Title:      "Patient Revisit Rate",
		Value:      "0.0%",
	},
	"mhpl0003": {
		ID:         "geographic-distribution",
		EndpointID: "mhpl0003",
		Title:      "Geographic Distribution",
		Value:      "0",
	},
	"mhpl0004": {
		ID:         "total-patient-spending",
		EndpointID: "mhpl0004",
		Title:      "Total Patient Spending",
		Value:      "0",
	},
}

// AssembleCards builds the card list for a run. requested must already be in
// canonical endpoint order; the output follows it regardless of which
// endpoints succeeded. A panic inside one assembler is contained to that
// endpoint and downgrades it to its placeholder (if any).
func AssembleCards(requested []string, results map[string]model.EndpointResult) []model.KpiCard {
	multi := len(requested) > 1
	var cards []model.KpiCard
	for _, id := range requested {
		built := assembleOne(id, results)
		if len(built) == 0 && multi {
			if ph, ok := placeholders[id]; ok {
				built = []model.KpiCard{ph}
			}
		}
		cards = append(cards, built...)
	}
	return cards
}

func assembleOne(id string, results map[string]model.EndpointResult) (cards []model.KpiCard) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("❌ [%s] card assembly panicked: %v\n", id, r)
			cards = nil
		}
	}()

	res, ok := results[id]
	if !ok || !res.Success {
		return nil
	}
	fn := assemblers[id]
	if fn == nil {
		return nil
	}
	return fn(Normalize(id, res.Payload), res)
}

var monthFieldKeys = []string{"MONTH", "month", "periods", "PERIOD", "period"}

// totalsRecord returns the endpoint's totals block whether it arrives as an
// object or as a single-element array.
func totalsRecord(v View) model.GenericRecord {
	if obj := v.Object("totals"); obj != nil {
		return obj
	}
	if list := v.List("totals"); len(list) > 0 {
		return list[0]
	}
	return nil
}

func paramChip(chips []model.FilterChip, res model.EndpointResult, label, key string) []model.FilterChip {
	val := strings.TrimSpace(res.Params[key])
	if val == "" {
		return chips
	}
	return append(chips, model.FilterChip{Label: label, Value: val})
}

// --- mhpl0001: patient revisit rate -------------------------------------

func assembleRevisitRate(v View, res model.EndpointResult) []model.KpiCard {
	totals := v.Group("totals")
	if len(totals) == 0 {
		if obj := v.Object("totals"); obj != nil {
			totals = []model.GenericRecord{obj}
		}
	}
	if len(totals) == 0 {
		return nil
	}
	tot := totals[0]

	patCat := strings.TrimSpace(res.Params["PatCat"])
	monthly := v.Group("monthly")
	if patCat != "" && !strings.EqualFold(patCat, "INPATIENT,OUTPATIENT") {
		filtered := monthly[:0:0]
		for _, rec := range monthly {
			cat, _ := Pick(rec, "PATIENT_CATEGORY", "patient_category")
			if cat == nil || strings.EqualFold(strings.TrimSpace(fmt.Sprintf("%v", cat)), patCat) {
				filtered = append(filtered, rec)
			}
		}
		monthly = filtered
	}

	rateSeries := RatioByMonth(monthly, monthFieldKeys,
		[]string{"REVISIT_COUNT", "revisit_count"},
		[]string{"UNIQUE_PATIENT_COUNT", "UNIQUE_PATIENTS", "unique_patients", "unique_patient_count"})

	var rate float64
	if _, latest, ok := LatestMonthValue(rateSeries); ok {
		rate = latest
	} else if avg := PickNumber(tot, "AVERAGE_REVISIT_RATE", "average_revisit_rate"); avg > 0 {
		rate = avg
	} else {
		revisits := PickNumber(tot, "TOTAL_REVISIT_COUNT", "total_revisit_count")
		uniques := PickNumber(tot, "TOTAL_UNIQUE_PATIENTS", "total_unique_patients")
		if uniques > 0 {
			rate = revisits / uniques
		}
	}
	// The upstream reports the rate sometimes as a fraction, sometimes as a
	// percentage; anything above 1 is treated as the latter.
	if rate > 1 {
		rate /= 100
	}

	hover := map[string]string{}
	if uniques := PickNumber(tot, "TOTAL_UNIQUE_PATIENTS", "total_unique_patients"); uniques > 0 {
		hover["Total Unique Patients"] = utils.FormatAmount(uniques)
	}
	if revisits := PickNumber(tot, "TOTAL_REVISIT_COUNT", "total_revisit_count"); revisits > 0 {
		hover["Revisit Count"] = utils.FormatAmount(revisits)
	}

	return []model.KpiCard{{
		ID:           "patient-revisit-rate",
		EndpointID:   v.EndpointID,
		Title:        "Patient Revisit Rate",
		Value:        fmt.Sprintf("%.1f%%", rate*100),
		HoverMetrics: hover,
		LocalFilters: paramChip(nil, res, "Patient Type", "PatCat"),
		Trend:        ComputeTrend(rateSeries),
		Detail:       v.Root,
	}}
}

// --- mhpl0002: payroll expense / salary / allowance ---------------------

func assemblePayroll(v View, res model.EndpointResult) []model.KpiCard {
	grandTotal, hasGrand := payrollGrandTotal(v)

	var monthly []model.GenericRecord
	if sp := v.Object("summaryByPeriod"); sp != nil {
		monthly = flattenGroup(sp["monthly"])
	}

	expenseSeries := SumByMonth(monthly, monthFieldKeys,
		[]string{"total_expense", "TOTAL_EXPENSE", "grand_total_expense", "GRAND_TOTAL_EXPENSE"})

	var cards []model.KpiCard
	if hasGrand {
		cards = append(cards, model.KpiCard{
			ID:         "payroll-expense",
			EndpointID: v.EndpointID,
			Title:      "Payroll Expense",
			Value:      utils.FormatAmount(grandTotal),
			Trend:      ComputeTrend(expenseSeries),
			Detail:     v.Root,
		})
	}

	salarySeries := payrollCategorySeries(monthly, "salary")
	if _, salary, ok := LatestMonthValue(salarySeries); ok && salary > 0 {
		cards = append(cards, model.KpiCard{
			ID:         "total-salary",
			EndpointID: v.EndpointID,
			Title:      "Total Salary",
			Value:      utils.FormatAmount(salary),
			Trend:      ComputeTrend(salarySeries),
			Detail:     v.Root,
		})
	}

	allowanceSeries := payrollCategorySeries(monthly, "allowance")
	if _, allowance, ok := LatestMonthValue(allowanceSeries); ok && allowance > 0 {
		cards = append(cards, model.KpiCard{
			ID:         "total-allowance",
			EndpointID: v.EndpointID,
			Title:      "Total Allowance",
			Value:      utils.FormatAmount(allowance),
			Trend:      ComputeTrend(allowanceSeries),
			Detail:     v.Root,
		})
	}
	return cards
}

// payrollGrandTotal finds the grand total whether totals is the row-per-type
// array shape or the flat object shape.
func payrollGrandTotal(v View) (float64, bool) {
	for _, rec := range v.List("totals") {
		typ, _ := Pick(rec, "Expense_Type", "EXPENSE_TYPE", "expense_type")
		if typ != nil && strings.EqualFold(strings.TrimSpace(fmt.Sprintf("%v", typ)), "Grand_Total_Expense") {
			return PickNumber(rec, "Total_Amount", "TOTAL_AMOUNT", "total_amount"), true
		}
	}
	if obj := v.Object("totals"); obj != nil {
		if raw, ok := Pick(obj, "grand_total_expense", "Grand_Total_Expense", "GRAND_TOTAL_EXPENSE"); ok {
			if strings.TrimSpace(fmt.Sprintf("%v", raw)) != "" {
				return utils.Numeric(raw), true
			}
		}
	}
	return 0, false
}

// payrollCategorySeries sums one pay category (salary, allowance) per month
// across the monthly → departments → categories nesting.
func payrollCategorySeries(monthly []model.GenericRecord, category string) model.MonthlySeries {
	acc := model.MonthlySeries{}
	for _, monthRec := range monthly {
		rawMonth, _ := Pick(monthRec, monthFieldKeys...)
		month := NormalizeMonthKey(rawMonth)
		if month == "" {
			continue
		}
		for _, dept := range flattenGroup(monthRec["departments"]) {
			cats, ok := dept["categories"].([]interface{})
			if !ok {
				continue
			}
			for _, c := range cats {
				cat, ok := c.(map[string]interface{})
				if !ok {
					continue
				}
				name, _ := Pick(cat, "category", "CATEGORY")
				if name != nil && strings.EqualFold(strings.TrimSpace(fmt.Sprintf("%v", name)), category) {
					acc[month] += PickNumber(cat, "amount", "AMOUNT")
				}
			}
		}
	}
	return acc
}

// --- mhpl0003: geographic distribution ----------------------------------

func assembleGeographic(v View, res model.EndpointResult) []model.KpiCard {
	divisions := v.Group("groupByLocation")
	if len(divisions) == 0 {
		return nil
	}

	districtCount := 0
	patientTotal := 0.0
	for _, div := range divisions {
		districts, _ := div["DISTRICTS"].([]interface{})
		if districts == nil {
			districts, _ = div["districts"].([]interface{})
		}
		districtCount += len(districts)
		for _, d := range districts {
			if rec, ok := d.(map[string]interface{}); ok {
				patientTotal += PickNumber(rec, "PATIENT_COUNT", "patient_count")
			}
		}
	}

	return []model.KpiCard{{
		ID:         "geographic-distribution",
		EndpointID: v.EndpointID,
		Title:      "Geographic Distribution",
		Value:      fmt.Sprintf("%d", districtCount),
		HoverMetrics: map[string]string{
			"Divisions":      fmt.Sprintf("%d", len(divisions)),
			"Districts":      fmt.Sprintf("%d", districtCount),
			"Total Patients": utils.FormatAmount(patientTotal),
		},
		LocalFilters: paramChip(nil, res, "Patient Type", "PatCat"),
		Detail:       v.Root,
	}}
}

// --- mhpl0004: total patient spending -----------------------------------

func assemblePatientSpending(v View, res model.EndpointResult) []model.KpiCard {
	categories := v.Group("groupBySpendingCategory")
	if len(categories) == 0 {
		return nil
	}

	billedKeys := []string{"TOTAL_BILLED_AMOUNT", "total_billed_amount"}
	billedSeries := SumByMonth(v.Group("groupByMonth"), monthFieldKeys, billedKeys)

	total := 0.0
	if tot := totalsRecord(v); tot != nil {
		total = PickNumber(tot, billedKeys...)
	}
	if total <= 0 {
		if _, latest, ok := LatestMonthValue(billedSeries); ok && latest > 0 {
			total = latest
		}
	}
	if total <= 0 {
		for _, rec := range categories {
			total += PickNumber(rec, billedKeys...)
		}
	}

	avg := 0.0
	if len(categories) > 0 {
		avg = math.Floor(total / float64(len(categories)))
	}

	return []model.KpiCard{{
		ID:         "total-patient-spending",
		EndpointID: v.EndpointID,
		Title:      "Total Patient Spending",
		Value:      utils.FormatAmount(total),
		HoverMetrics: map[string]string{
			"Spending Categories": fmt.Sprintf("%d", len(categories)),
			"Average Category":    utils.FormatAmount(avg),
		},
		LocalFilters: paramChip(nil, res, "Patient Type", "PatCat"),
		Trend:        ComputeTrend(billedSeries),
		Detail:       v.Root,
	}}
}

// --- mhpl0005: consultant revenue ---------------------------------------

func assembleConsultantRevenue(v View, res model.EndpointResult) []model.KpiCard {
	revenueKeys := []string{"total_revenue", "TOTAL_REVENUE", "daily_revenue", "DAILY_REVENUE", "revenue"}

	consultants := v.Group("groupByConsultant")
	consultantSum := 0.0
	for _, rec := range consultants {
		consultantSum += PickNumber(rec, revenueKeys...)
	}

	totalsRevenue := 0.0
	if tot := totalsRecord(v); tot != nil {
		totalsRevenue = PickNumber(tot, revenueKeys...)
	}

	revenue := totalsRevenue
	if revenue <= 0 {
		revenue = consultantSum
	}
	if revenue <= 0 {
		return nil
	}

	monthlySeries := SumByMonth(v.Group("groupByMonth"), monthFieldKeys, revenueKeys)
	value := totalsRevenue
	if value <= 0 {
		if _, latest, ok := LatestMonthValue(monthlySeries); ok && latest > 0 {
			value = latest
		} else {
			value = revenue
		}
	}

	hover := map[string]string{
		"Total Consultants": fmt.Sprintf("%d", len(consultants)),
	}
	if len(consultants) > 0 {
		hover["Avg Revenue"] = utils.FormatAmount(math.Floor(revenue / float64(len(consultants))))
	}

	return []model.KpiCard{{
		ID:           "consultant-revenue",
		EndpointID:   v.EndpointID,
		Title:        "Revenue Driver Consultants",
		Value:        utils.FormatAmount(value),
		HoverMetrics: hover,
		LocalFilters: paramChip(nil, res, "Service Type", "ServiceTypes"),
		Trend:        ComputeTrend(monthlySeries),
		Detail:       v.Root,
	}}
}

// --- mhpl0006: insurance claims -----------------------------------------

func assembleInsuranceClaims(v View, res model.EndpointResult) []model.KpiCard {
	totalClaims := 0.0
	for _, rec := range v.Group("groupByInsuranceProvider") {
		totalClaims += PickNumber(rec, "claim_count", "CLAIM_COUNT")
	}

	claimedAmount := 0.0
	pending := 0.0
	if tot := totalsRecord(v); tot != nil {
		claimedAmount = PickNumber(tot, "total_claimed_amount", "TOTAL_CLAIMED_AMOUNT")
		pending = PickNumber(tot, "total_pending_receivable", "TOTAL_PENDING_RECEIVABLE")
	}

	if totalClaims <= 0 && claimedAmount <= 0 {
		return nil
	}

	value := utils.FormatAmount(totalClaims)
	if totalClaims <= 0 {
		value = utils.FormatAmount(claimedAmount)
	}

	chips := paramChip(nil, res, "Insurance Providers", "InsuranceProviders")
	chips = paramChip(chips, res, "Department", "Departments")

	return []model.KpiCard{{
		ID:         "insurance-claims",
		EndpointID: v.EndpointID,
		Title:      "IPD Insurance Claims",
		Value:      value,
		HoverMetrics: map[string]string{
			"Total Claims":       utils.FormatAmount(totalClaims),
			"Claimed Amount":     utils.FormatAmount(claimedAmount),
			"Pending Receivable": utils.FormatAmount(pending),
		},
		LocalFilters: chips,
		Detail:       v.Root,
	}}
}

// --- mhpl0007: bed occupancy --------------------------------------------

func assembleBedOccupancy(v View, res model.EndpointResult) []model.KpiCard {
	rec := totalsRecord(v)
	if rec == nil {
		rec = v.Root
	}

	occupancy := PickNumber(rec, "occupancy_rate", "OCCUPANCY_RATE")
	totalBeds := PickNumber(rec, "total_beds", "TOTAL_BEDS")
	occupied := PickNumber(rec, "occupied_beds", "OCCUPIED_BEDS")
	available := PickNumber(rec, "available_beds", "AVAILABLE_BEDS")
	unavailable := PickNumber(rec, "unavailable_beds", "UNAVAILABLE_BEDS")

	threshold := utils.Numeric(res.Params["Threshold"])

	var alert *model.AlertBlock
	if alerts := v.Object("alerts"); alerts != nil && totalBeds > 0 {
		flag, _ := Pick(alerts, "occupancy_below_standard", "OCCUPANCY_BELOW_STANDARD")
		if flag != nil && strings.EqualFold(strings.TrimSpace(fmt.Sprintf("%v", flag)), "true") {
			msg := strings.TrimSpace(fmt.Sprintf("%v", alerts["message"]))
			if msg == "" || msg == "<nil>" {
				msg = fmt.Sprintf("Current %d%% vs threshold %d%%", int(math.Round(occupancy)), int(math.Round(threshold)))
			}
			alert = &model.AlertBlock{
				Message:      msg,
				Threshold:    threshold,
				CurrentValue: occupancy,
			}
		}
	}

	var chips []model.FilterChip
	if strings.TrimSpace(res.Params["Threshold"]) != "" {
		chips = append(chips, model.FilterChip{Label: "Threshold", Value: res.Params["Threshold"] + "%"})
	}

	return []model.KpiCard{{
		ID:         "bed-occupancy",
		EndpointID: v.EndpointID,
		Title:      "IPD Bed Occupancy",
		Value:      fmt.Sprintf("%d%%", int(math.Round(occupancy))),
		HoverMetrics: map[string]string{
			"Total Beds":       utils.FormatAmount(totalBeds),
			"Occupied Beds":    utils.FormatAmount(occupied),
			"Available Beds":   utils.FormatAmount(available),
			"Unavailable Beds": utils.FormatAmount(unavailable),
		},
		LocalFilters: chips,
		Alert:        alert,
		Detail:       v.Root,
	}}
}

// --- mhpl0008: employee performance -------------------------------------

func assembleEmployeePerformance(v View, res model.EndpointResult) []model.KpiCard {
	presentDays := 0.0
	workingDays := 0.0
	totalEmployees := 0.0

	departments := v.Group("groupByDepartment")
	if len(departments) > 0 {
		for _, dept := range departments {
			empCount := PickNumber(dept, "total_employees", "TOTAL_EMPLOYEES")
			avgPresent := PickNumber(dept, "average_present_days", "AVERAGE_PRESENT_DAYS")
			presentDays += math.Round(avgPresent * empCount)
			// Working days are uniform within a department; the first
			// employee row carries the sample.
			if emps := flattenGroup(dept["employees"]); len(emps) > 0 {
				sample := PickNumber(emps[0], "working_days", "WORKING_DAYS")
				workingDays += math.Round(sample * empCount)
			}
			totalEmployees += empCount
		}
	} else {
		employees := v.Group("groupByEmployee")
		for _, emp := range employees {
			presentDays += PickNumber(emp, "present_days", "PRESENT_DAYS")
			workingDays += PickNumber(emp, "working_days", "WORKING_DAYS")
		}
		totalEmployees = float64(len(employees))
	}

	if totalEmployees <= 0 {
		return nil
	}

	attendance := 0.0
	if workingDays > 0 {
		attendance = presentDays / workingDays * 100
	}

	return []model.KpiCard{{
		ID:         "employee-attendance",
		EndpointID: v.EndpointID,
		Title:      "Employee Performance",
		Value:      fmt.Sprintf("%d%%", int(math.Round(attendance))),
		HoverMetrics: map[string]string{
			"Total Employees":    utils.FormatAmount(totalEmployees),
			"Total Present Days": utils.FormatAmount(presentDays),
			"Total Working Days": utils.FormatAmount(workingDays),
			"Average Attendance": fmt.Sprintf("%.1f%%", attendance),
		},
		Detail: v.Root,
	}}
}

// --- mhpl0009: expired medicine loss ------------------------------------

func assembleExpiredMedicine(v View, res model.EndpointResult) []model.KpiCard {
	tot := totalsRecord(v)
	if tot == nil {
		return nil
	}
	totalLoss := PickNumber(tot, "total_loss_value", "TOTAL_LOSS_VALUE")
	if totalLoss <= 0 {
		return nil
	}

	var chips []model.FilterChip
	if cat := strings.TrimSpace(res.Params["medicine_categories"]); cat != "" {
		chips = append(chips, model.FilterChip{Label: "Medicine Categories", Value: strings.ToUpper(cat)})
	}

	return []model.KpiCard{{
		ID:         "expired-medicine-loss",
		EndpointID: v.EndpointID,
		Title:      "Pharmacy Expired Medicine Loss",
		Value:      utils.FormatAmount(totalLoss),
		HoverMetrics: map[string]string{
			"Expired Quantity": utils.FormatAmount(PickNumber(tot, "expired_quantity", "EXPIRED_QUANTITY")),
			"Wasted Quantity":  utils.FormatAmount(PickNumber(tot, "wasted_quantity", "WASTED_QUANTITY")),
			"Total Quantity":   utils.FormatAmount(PickNumber(tot, "total_quantity", "TOTAL_QUANTITY")),
		},
		LocalFilters: chips,
		Detail:       v.Root,
	}}
}

// --- mhpl0010: employee salary summary ----------------------------------

func assembleSalarySummary(v View, res model.EndpointResult) []model.KpiCard {
	tot := totalsRecord(v)
	if tot == nil {
		return nil
	}
	overall := PickNumber(tot, "overall_salary", "OVERALL_SALARY")
	if overall <= 0 {
		return nil
	}

	chips := paramChip(nil, res, "Departments", "Departments")
	if emp := strings.TrimSpace(res.Params["EmpType"]); emp != "" {
		chips = append(chips, model.FilterChip{Label: "Emp Type", Value: strings.ToUpper(emp)})
	}
	chips = paramChip(chips, res, "Summ Type", "SummType")

	return []model.KpiCard{{
		ID:         "employee-salary-summary",
		EndpointID: v.EndpointID,
		Title:      "Employee Salary Summary",
		Value:      utils.FormatAmount(overall),
		HoverMetrics: map[string]string{
			"Total Employees": utils.FormatAmount(PickNumber(tot, "total_employees", "TOTAL_EMPLOYEES")),
		},
		LocalFilters: chips,
		Detail:       v.Root,
	}}
}

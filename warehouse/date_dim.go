package warehouse

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/chararch/starbatch/dataset"
)

// Season of a month: Winter is Dec-Feb, Spring Mar-May, Summer Jun-Aug, Fall Sep-Nov.
func Season(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "Winter"
	case time.March, time.April, time.May:
		return "Spring"
	case time.June, time.July, time.August:
		return "Summer"
	}
	return "Fall"
}

// WeekdayWeekend classifies Saturday and Sunday as Weekend.
func WeekdayWeekend(d time.Weekday) string {
	if d == time.Saturday || d == time.Sunday {
		return "Weekend"
	}
	return "Weekday"
}

// GenerateDates builds Date_Dim with one row per day from start to end
// inclusive. Date_ID numbers the days from 1.
func GenerateDates(start, end time.Time) (*dataset.Dataset, error) {
	start, end = dataset.Day(start), dataset.Day(end)
	if end.Before(start) {
		return nil, errors.Errorf("date range end %v is before start %v", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	ds := dataset.New(DateDim.String(), DateDim.Descriptor().ColumnNames())
	id := int64(1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		ds.Append(dataset.Row{
			"Date_ID":         id,
			"Full_Date":       d,
			"Day":             int64(d.Day()),
			"Month":           int64(d.Month()),
			"Month_Name":      d.Month().String(),
			"Quarter":         fmt.Sprintf("Q%d", (int(d.Month())-1)/3+1),
			"Year":            int64(d.Year()),
			"Weekday_Weekend": WeekdayWeekend(d.Weekday()),
			"Season":          Season(d.Month()),
		})
		id++
	}
	return ds, nil
}

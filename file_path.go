package starbatch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/chararch/starbatch/dataset"
)

//FilePath is a source path pattern such as "extracts/{date,yyyyMMdd}/customer.csv"
type FilePath struct {
	NamePattern string
}

var paramRegexp = regexp.MustCompile("\\{[^\\}]+\\}")

//Format resolves every {param} or {param,format} placeholder from the run params, then the run context
func (f FilePath) Format(execution *RunExecution) (string, error) {
	var err error
	path := paramRegexp.ReplaceAllStringFunc(f.NamePattern, func(s string) string {
		if err != nil {
			return s
		}
		param, format := s[1:len(s)-1], ""
		if idx := strings.Index(param, ","); idx > 0 {
			param, format = param[0:idx], param[idx+1:]
		}
		param = strings.TrimSpace(param)
		var paramVal interface{}
		if v, ok := execution.Params[param]; ok {
			paramVal = v
		} else if execution.RunContext.Exists(param) {
			paramVal = execution.RunContext.Get(param)
		} else {
			err = errors.Errorf("can not find param:%v for path %v", param, f.NamePattern)
			return s
		}
		var str string
		str, err = formatParam(paramVal, strings.TrimSpace(format))
		return str
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

var dateFmtRegexp = regexp.MustCompile("yyyy|MM|dd|HH|mm|SS")

func formatParam(val interface{}, format string) (string, error) {
	if val == nil {
		return "", nil
	}
	if format == "" {
		if s, ok := dataset.AsString(val); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", val), nil
	} else if dateFmtRegexp.MatchString(format) {
		format = strings.ReplaceAll(format, "yyyy", "2006")
		format = strings.ReplaceAll(format, "MM", "01")
		format = strings.ReplaceAll(format, "dd", "02")
		format = strings.ReplaceAll(format, "HH", "15")
		format = strings.ReplaceAll(format, "mm", "04")
		format = strings.ReplaceAll(format, "SS", "05")
		dt, err := parseDate(val)
		if err != nil {
			return "", err
		}
		return dt.Format(format), nil
	} else if idx := strings.Index(format, "#"); idx >= 0 {
		//zero padded number: "#4" or "4#"
		var digit int
		var err error
		if idx == 0 {
			digit, err = strconv.Atoi(format[1:])
		} else {
			digit, err = strconv.Atoi(format[0:idx])
		}
		if err != nil {
			return "", errors.Errorf("unsupported format:%v", format)
		}
		n, ok := dataset.AsInt64(val)
		if !ok {
			return "", errors.Errorf("can not parse to integer:%v", val)
		}
		return fmt.Sprintf("%0*d", digit, n), nil
	}
	return "", errors.Errorf("unsupported format:%v", format)
}

func parseDate(val interface{}) (time.Time, error) {
	if t, ok := val.(time.Time); ok {
		return t, nil
	}
	if s, ok := val.(string); ok {
		switch len(s) {
		case 8:
			return time.ParseInLocation("20060102", s, time.Local)
		case 10:
			return time.ParseInLocation("2006-01-02", s, time.Local)
		case 19:
			return time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
		}
	}
	return time.Time{}, errors.Errorf("can not parse to date:%v", val)
}

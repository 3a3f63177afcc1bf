package buildtool

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/maxg/didit-sub000/internal/types"
)

var ErrMalformedReport = errors.New("malformed test report")

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlMessage struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

type xmlData struct {
	ContentType string `xml:"content-type,attr"`
	Text        string `xml:",chardata"`
}

type xmlCase struct {
	Failure   *xmlMessage `xml:"failure"`
	Error     *xmlMessage `xml:"error"`
	Skipped   *xmlMessage `xml:"skipped"`
	Data      *xmlData    `xml:"data"`
	Name      string      `xml:"name,attr"`
	ClassName string      `xml:"classname,attr"`
}

type xmlSuite struct {
	Name       string        `xml:"name,attr"`
	Package    string        `xml:"package,attr"`
	Properties []xmlProperty `xml:"properties>property"`
	Cases      []xmlCase     `xml:"testcase"`
	Suites     []xmlSuite    `xml:"testsuite"`
}

// Parses a JUnit XML report rooted at either <testsuites> or a single <testsuite>
func ParseReport(r io.Reader) ([]types.TestSuite, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no root element", ErrMalformedReport)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedReport, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var root xmlSuite
		if err := dec.DecodeElement(&root, &start); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedReport, err)
		}

		switch start.Name.Local {
		case "testsuites":
			return convertSuites(root.Suites)
		case "testsuite":
			return convertSuites([]xmlSuite{root})
		default:
			return nil, fmt.Errorf("%w: unexpected root <%s>", ErrMalformedReport, start.Name.Local)
		}
	}
}

func convertSuites(in []xmlSuite) ([]types.TestSuite, error) {
	out := make([]types.TestSuite, 0, len(in))
	for _, s := range in {
		// nested suites are flattened in document order
		if len(s.Suites) > 0 {
			nested, err := convertSuites(s.Suites)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			if len(s.Cases) == 0 {
				continue
			}
		}

		suite, err := convertSuite(s)
		if err != nil {
			return nil, err
		}
		out = append(out, suite)
	}
	return out, nil
}

func splitName(pkg, name string) (string, string) {
	if pkg != "" {
		return pkg, strings.TrimPrefix(name, pkg+".")
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func convertSuite(s xmlSuite) (types.TestSuite, error) {
	pkg, name := splitName(s.Package, s.Name)
	suite := types.TestSuite{
		Package:    pkg,
		Name:       name,
		Properties: make(map[string]string, len(s.Properties)),
		TestCases:  make([]types.TestCase, 0, len(s.Cases)),
	}
	for _, p := range s.Properties {
		suite.Properties[p.Name] = p.Value
	}

	for _, c := range s.Cases {
		tc := types.TestCase{Name: c.Name, ClassName: c.ClassName, Outcome: types.OutcomePass}
		switch {
		case c.Error != nil:
			tc.Outcome = types.OutcomeError
			tc.Message = describe(c.Error)
		case c.Failure != nil:
			tc.Outcome = types.OutcomeFailure
			tc.Message = describe(c.Failure)
		case c.Skipped != nil:
			tc.Outcome = types.OutcomeMissing
			tc.Message = describe(c.Skipped)
		}

		if c.Data != nil {
			payload, err := decodePayload(c.Data)
			if err != nil {
				return types.TestSuite{}, fmt.Errorf("%w: %s.%s: %w", ErrMalformedReport, name, c.Name, err)
			}
			tc.Payload = payload
		}
		suite.TestCases = append(suite.TestCases, tc)
	}
	return suite, nil
}

func describe(m *xmlMessage) string {
	text := strings.TrimSpace(m.Text)
	switch {
	case m.Message == "":
		return text
	case text == "":
		return m.Message
	default:
		return m.Message + "\n" + text
	}
}

func decodePayload(d *xmlData) (*types.Payload, error) {
	compact := strings.Join(strings.Fields(d.Text), "")
	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, err
	}
	contentType := d.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &types.Payload{ContentType: contentType, Data: data}, nil
}

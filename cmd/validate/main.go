package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/journey-engine/pkg/content"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <city.json>...\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &CityValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}

	fmt.Println("City files are valid!")
}

type CityValidator struct {
	errors []string
}

func (v *CityValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("city file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidCityFilename(nameWithoutExt) {
		return fmt.Errorf("city filename '%s' must be lowercase snake_case (e.g., new_york.json, not new-york.json or NewYork.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var city content.CityFile
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&city); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	v.validateCity(&city)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	return nil
}

func (v *CityValidator) validateCity(city *content.CityFile) {
	if city.ID <= 0 {
		v.addError(fmt.Sprintf("city_id must be positive, got %d", city.ID))
	}
	if strings.TrimSpace(city.Name) == "" {
		v.addError("city_name is required")
	}
	if len(city.Questions) == 0 {
		v.addError("city has no questions")
	}

	seen := make(map[int]bool)
	for i, q := range city.Questions {
		where := fmt.Sprintf("question %d (entry %d)", q.Number, i+1)
		if q.Number <= 0 {
			v.addError(fmt.Sprintf("%s: question_number must be positive", where))
		}
		if seen[q.Number] {
			v.addError(fmt.Sprintf("%s: duplicate question_number", where))
		}
		seen[q.Number] = true

		if q.CityID != 0 && q.CityID != city.ID {
			v.addError(fmt.Sprintf("%s: city_id %d does not match file city_id %d", where, q.CityID, city.ID))
		}
		if strings.TrimSpace(q.Text) == "" {
			v.addError(fmt.Sprintf("%s: question_text is required", where))
		}
		if strings.TrimSpace(q.YesText) == "" {
			v.addError(fmt.Sprintf("%s: yes_text is required", where))
		}
		if strings.TrimSpace(q.NoText) == "" {
			v.addError(fmt.Sprintf("%s: no_text is required", where))
		}
	}
}

func (v *CityValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidCityFilename(name string) bool {
	return validFilenameRegex.MatchString(name)
}

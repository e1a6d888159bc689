package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/samber/lo"

	"github.com/noah-isme/sma-scheduler/internal/dto"
	"github.com/noah-isme/sma-scheduler/internal/models"
	"github.com/noah-isme/sma-scheduler/internal/repository"
	"github.com/noah-isme/sma-scheduler/internal/service"
	"github.com/noah-isme/sma-scheduler/pkg/config"
	"github.com/noah-isme/sma-scheduler/pkg/database"
	"github.com/noah-isme/sma-scheduler/pkg/logger"
	"github.com/noah-isme/sma-scheduler/pkg/storage"
)

func main() {
	var (
		algorithm    string
		snapshotPath string
		semester     string
		academicYear string
		timeout      int
		courses      string
		compare      bool
		outDir       string
		format       string
	)

	flag.StringVar(&algorithm, "algorithm", "", "Algorithm to run: greedy, genetic or hybrid (defaults to SCHEDULER_DEFAULT_ALGORITHM)")
	flag.StringVar(&snapshotPath, "snapshot", "", "Path to a JSON term snapshot; the database is used when empty")
	flag.StringVar(&semester, "semester", "", "Semester to schedule")
	flag.StringVar(&academicYear, "year", "", "Academic year, e.g. 2025/2026")
	flag.IntVar(&timeout, "timeout", -1, "Per-algorithm timeout in seconds (defaults to SCHEDULER_TIMEOUT)")
	flag.StringVar(&courses, "courses", "", "Comma separated course ids to restrict the run to")
	flag.BoolVar(&compare, "compare", false, "Run every algorithm and compare them")
	flag.StringVar(&outDir, "out", "", "Directory for the exported result (defaults to EXPORT_STORAGE_DIR)")
	flag.StringVar(&format, "format", "", "Export format: json, csv, pdf or xlsx (defaults to EXPORT_FORMAT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	courseIDs, err := parseCourseIDs(courses)
	if err != nil {
		log.Fatalf("invalid -courses: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var source service.SnapshotSource
	if snapshotPath != "" {
		source = repository.NewFileSnapshotSource(snapshotPath)
	} else {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("database unavailable: %v", err)
		}
		defer db.Close() //nolint:errcheck
		source = repository.NewSnapshotRepository(db)
	}

	if outDir == "" {
		outDir = cfg.Export.StorageDir
	}
	if format == "" {
		format = lo.Ternary(cfg.Export.Format != "", cfg.Export.Format, "json")
	}
	store, err := storage.NewLocalStorage(outDir)
	if err != nil {
		log.Fatalf("failed to prepare export dir: %v", err)
	}
	exporter := service.NewExportService(store, service.ExportConfig{Retention: cfg.Export.Retention}, logr)

	schedCfg := service.SchedulingConfigFromSettings(cfg.Scheduler)
	metrics := service.NewMetricsService()

	if compare {
		seconds := timeout
		if seconds < 0 {
			seconds = int(schedCfg.Timeout.Seconds())
		}
		svc := service.NewComparisonService(source, nil, metrics, nil, logr, schedCfg)
		report, err := svc.CompareWith(ctx, dto.CompareRequest{
			Semester:       semester,
			AcademicYear:   academicYear,
			CourseIDs:      courseIDs,
			TimeoutSeconds: seconds,
		})
		if err != nil {
			log.Fatalf("comparison failed: %v", err)
		}
		printComparison(report)
		res, err := exporter.ExportComparison(report, format)
		if err != nil {
			log.Fatalf("export failed: %v", err)
		}
		fmt.Printf("\nWritten %s (%d bytes)\n", store.Path(res.RelativePath), res.Bytes)
		return
	}

	req := dto.ScheduleRunRequest{
		Semester:     semester,
		AcademicYear: academicYear,
		CourseIDs:    courseIDs,
		Algorithm:    algorithm,
	}
	if timeout >= 0 {
		req.TimeoutSeconds = &timeout
	}
	svc := service.NewSchedulingService(source, nil, metrics, nil, logr, schedCfg)
	outcome, err := svc.Run(ctx, req)
	if err != nil {
		log.Fatalf("schedule run failed: %v", err)
	}
	printRun(&outcome.Report)
	res, err := exporter.ExportRun(outcome, format)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}
	fmt.Printf("\nWritten %s (%d bytes)\n", store.Path(res.RelativePath), res.Bytes)
}

func parseCourseIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := lo.Filter(strings.Split(raw, ","), func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	})
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("course id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return lo.Uniq(ids), nil
}

func printRun(report *models.RunReport) {
	fmt.Printf("Algorithm:      %s\n", report.Algorithm)
	fmt.Printf("Term:           %s %s\n", report.Semester, report.AcademicYear)
	fmt.Printf("Success rate:   %.2f%% (%d/%d)\n", report.SuccessRate, report.SuccessfulAssignments, report.TotalConstraints)
	fmt.Printf("Fitness:        %.2f\n", report.Fitness)
	if report.Algorithm != models.AlgorithmGreedy {
		fmt.Printf("Generations:    %d\n", report.Generations)
	}
	fmt.Printf("Timed out:      %t\n", report.TimedOut)
	for _, f := range report.FailedAssignments {
		fmt.Printf("  unmet course %d teacher %d: %d of %d (%s)\n", f.CourseID, f.TeacherID, f.Achieved, f.Required, f.Reason)
	}
	for _, s := range report.Suggestions {
		fmt.Printf("  suggestion: %s\n", s)
	}
}

func printComparison(report *models.ComparisonReport) {
	fmt.Printf("%-8s %-10s %10s %10s %9s\n", "ALG", "STATUS", "SUCCESS%", "FITNESS", "TIME(s)")
	for _, algorithm := range models.Algorithms {
		o, ok := report.Results[algorithm]
		if !ok {
			continue
		}
		fmt.Printf("%-8s %-10s %10.2f %10.2f %9.3f\n", algorithm, o.Status, o.SuccessRate, o.Fitness, o.ExecutionTimeSeconds)
		if o.Error != "" {
			fmt.Printf("         error: %s\n", o.Error)
		}
	}
	fmt.Printf("Best overall: %s\n", lo.Ternary(report.BestOverall != "", string(report.BestOverall), "none"))
}

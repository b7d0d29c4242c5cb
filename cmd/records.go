package main

import (
	"fmt"
	"time"

	"github.com/kirsrus/attendance/server/model"

	"github.com/juju/errors"
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Записи журнала посещений",
	Args:  cobra.NoArgs,
	RunE:  runRecords,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Сводка посещений за день",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Выгрузка журнала в файл отчёта",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(recordsCmd, summaryCmd, exportCmd)

	recordsCmd.Flags().String("date", "", "День в формате YYYY-MM-DD (по умолчанию все записи)")
	recordsCmd.Flags().Bool("dump", false, "Вывести записи целиком")
	summaryCmd.Flags().String("date", "", "День в формате YYYY-MM-DD (по умолчанию сегодня)")
}

// parseDate день из флага --date. Пустое значение - nil
func parseDate(cmd *cobra.Command) (*time.Time, error) {
	date := mustGetString(cmd, "date")
	if date == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(model.DateLayout, date, time.Local)
	if err != nil {
		return nil, errors.NotValidf("дата %q", date)
	}
	return &day, nil
}

func runRecords(cmd *cobra.Command, args []string) error {
	day, err := parseDate(cmd)
	if err != nil {
		return errors.Trace(err)
	}
	c, err := openCore(cmd.Context())
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()

	records := c.ledger.Records(day)
	if mustGetBool(cmd, "dump") {
		_, _ = pp.Println(records)
		return nil
	}
	if len(records) == 0 {
		fmt.Println("Записей нет")
		return nil
	}
	for _, v := range records {
		fmt.Printf("%s  %s  %-30s  %-12s  %-8s  %s\n", v.DateString(), v.Time, v.Name, v.ExternalID, v.Status, v.PhotoPath)
	}
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	day, err := parseDate(cmd)
	if err != nil {
		return errors.Trace(err)
	}
	if day == nil {
		now := time.Now()
		day = &now
	}
	c, err := openCore(cmd.Context())
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()

	summary := c.ledger.Summary(*day)
	fmt.Printf("Сводка за %s\n", summary.Date)
	fmt.Printf("  Вовремя:   %d\n", summary.OnTime)
	fmt.Printf("  Опоздали:  %d\n", summary.Late)
	fmt.Printf("  Всего:     %d\n", summary.Total)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	c, err := openCore(cmd.Context())
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()

	path, err := c.ledger.Export(cfg.DataPath(cfg.Storage.ReportDir), time.Now())
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("Отчёт сохранён: %s\n", path)
	return nil
}

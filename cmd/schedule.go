package main

import (
	"fmt"

	"github.com/kirsrus/attendance/server/model"

	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Рабочее расписание и порог распознавания",
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Действующее расписание",
	Args:  cobra.NoArgs,
	RunE:  runScheduleShow,
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Изменение расписания. Не указанные значения не меняются",
	Long: `Изменение расписания. Не указанные значения не меняются.

Пример:
  attendance schedule set --work-start 08:30 --late-threshold 10 --tolerance 0.5`,
	Args: cobra.NoArgs,
	RunE: runScheduleSet,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleShowCmd, scheduleSetCmd)

	scheduleSetCmd.Flags().String("work-start", "", "Начало рабочего дня, HH:MM")
	scheduleSetCmd.Flags().String("work-end", "", "Окончание рабочего дня, HH:MM")
	scheduleSetCmd.Flags().String("late-threshold", "", "Допустимое опоздание, минут")
	scheduleSetCmd.Flags().String("tolerance", "", "Порог распознавания (0,1]")
	scheduleSetCmd.Flags().String("location", "", "Место установки")
}

func printSchedule(form model.ScheduleForm) {
	fmt.Printf("Начало рабочего дня:   %s\n", form.WorkStart)
	fmt.Printf("Окончание рабочего дня: %s\n", form.WorkEnd)
	fmt.Printf("Допустимое опоздание:  %s мин.\n", form.LateThreshold)
	fmt.Printf("Порог распознавания:   %s\n", form.Tolerance)
	fmt.Printf("Место установки:       %s\n", form.Location)
}

func runScheduleShow(cmd *cobra.Command, args []string) error {
	c, err := openCore(cmd.Context())
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()

	printSchedule(c.schedule.Current().Form())
	return nil
}

func runScheduleSet(cmd *cobra.Command, args []string) error {
	c, err := openCore(cmd.Context())
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()

	form := c.schedule.Current().Form()
	flags := []struct {
		name  string
		value *string
	}{
		{"work-start", &form.WorkStart},
		{"work-end", &form.WorkEnd},
		{"late-threshold", &form.LateThreshold},
		{"tolerance", &form.Tolerance},
		{"location", &form.Location},
	}
	for _, v := range flags {
		if cmd.Flags().Changed(v.name) {
			*v.value = mustGetString(cmd, v.name)
		}
	}

	schedule, err := c.schedule.Update(form)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Println("Расписание сохранено")
	printSchedule(schedule.Form())
	return nil
}

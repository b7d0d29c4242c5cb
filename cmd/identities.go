package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Реестр зарегистрированных персон",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список персон в порядке регистрации",
	Args:  cobra.NoArgs,
	RunE:  runIdentitiesList,
}

var identitiesRemoveCmd = &cobra.Command{
	Use:   "remove <номер>",
	Short: "Удаление персоны со всеми её дескрипторами",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesRemove,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Регистрация персоны по изображению",
	Long: `Регистрация персоны по первому найденному на изображении лицу. Повторная регистрация
с тем же именем и идентификатором добавляет персоне ещё один дескриптор.

Пример:
  attendance register --name "Ana Lima" --id S1 --image ana.jpg`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

var registerDirCmd = &cobra.Command{
	Use:   "register-dir <директория>",
	Short: "Регистрация персон по изображениям из директории",
	Long: `Регистрация персон по изображениям с именами вида <Имя>_<Идентификатор>.<расширение>,
например "Ana Lima_S1.jpg". Изображения без лиц и с некорректными именами пропускаются.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegisterDir,
}

func init() {
	rootCmd.AddCommand(identitiesCmd, registerCmd, registerDirCmd)
	identitiesCmd.AddCommand(identitiesListCmd, identitiesRemoveCmd)

	registerCmd.Flags().String("name", "", "Имя персоны")
	registerCmd.Flags().String("id", "", "Внешний идентификатор персоны")
	registerCmd.Flags().String("image", "", "Файл изображения")
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	c, err := openCore(cmd.Context())
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()

	refs := c.registry.List()
	if len(refs) == 0 {
		fmt.Println("Реестр пуст")
		return nil
	}
	for _, v := range refs {
		fmt.Printf("%4d  %-30s  %-12s  дескрипторов: %d\n", v.Index, v.Name, v.ExternalID, v.Descriptors)
	}
	return nil
}

func runIdentitiesRemove(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.NotValidf("номер персоны %q", args[0])
	}
	c, err := openCore(cmd.Context())
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()

	removed, err := c.registry.Remove(index)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("Удалена персона %s (%s)\n", removed.Name, removed.ExternalID)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	externalID := mustGetString(cmd, "id")
	imagePath := mustGetString(cmd, "image")
	if imagePath == "" {
		return errors.NotValidf("не указан файл изображения")
	}
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return errors.Annotatef(err, "ошибка чтения %s", imagePath)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	c, err := openCore(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()
	encoder, err := newEncoder(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if encoder == nil {
		return errors.NotSupportedf("регистрация без адреса кодировщика")
	}

	descriptor, err := encodeFirst(ctx, encoder, image)
	if err != nil {
		return errors.Trace(err)
	}
	ref, created, err := c.coordinator.Enroll(name, externalID, descriptor, image)
	if err != nil {
		return errors.Trace(err)
	}
	if created {
		fmt.Printf("Зарегистрирована персона %s (%s)\n", ref.Name, ref.ExternalID)
	} else {
		fmt.Printf("Персоне %s (%s) добавлен дескриптор, всего %d\n", ref.Name, ref.ExternalID, ref.Descriptors)
	}
	return nil
}

// parseEnrollName имя и идентификатор персоны из имени файла вида <Имя>_<Идентификатор>.<расширение>
func parseEnrollName(fileName string) (string, string, bool) {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	i := strings.LastIndex(base, "_")
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	name := strings.TrimSpace(base[:i])
	externalID := strings.TrimSpace(base[i+1:])
	if name == "" || externalID == "" {
		return "", "", false
	}
	return name, externalID, true
}

// isImageFile поддерживаемое расширение изображения
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}

func runRegisterDir(cmd *cobra.Command, args []string) error {
	entries, err := os.ReadDir(args[0])
	if err != nil {
		return errors.Annotatef(err, "ошибка чтения директории %s", args[0])
	}
	files := make([]string, 0, len(entries))
	for _, v := range entries {
		if !v.IsDir() && isImageFile(v.Name()) {
			files = append(files, filepath.Join(args[0], v.Name()))
		}
	}
	if len(files) == 0 {
		fmt.Println("Изображений для регистрации не найдено")
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	c, err := openCore(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer c.close()
	encoder, err := newEncoder(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if encoder == nil {
		return errors.NotSupportedf("регистрация без адреса кодировщика")
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Регистрация"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var created, added int
	skipped := make([]string, 0)
	for _, path := range files {
		_ = bar.Add(1)
		name, externalID, ok := parseEnrollName(path)
		if !ok {
			skipped = append(skipped, fmt.Sprintf("%s: имя файла не в формате <Имя>_<Идентификатор>", filepath.Base(path)))
			continue
		}
		image, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		descriptor, err := encodeFirst(ctx, encoder, image)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		_, isNew, err := c.coordinator.Enroll(name, externalID, descriptor, image)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		if isNew {
			created++
		} else {
			added++
		}
	}
	_ = bar.Finish()

	fmt.Printf("\nЗарегистрировано персон: %d, добавлено дескрипторов: %d, пропущено: %d\n", created, added, len(skipped))
	for _, v := range skipped {
		fmt.Printf("  %s\n", v)
	}
	return nil
}
